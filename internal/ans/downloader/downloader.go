// Package downloader retrieves the quarterly accounting archives and the
// operator registry from the ANS open data portal.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/logger"
	"golang.org/x/net/html"
)

var (
	DemonstracoesURL = "https://dadosabertos.ans.gov.br/FTP/PDA/demonstracoes_contabeis/"
	RegistryURL      = "https://dadosabertos.ans.gov.br/FTP/PDA/operadoras_de_plano_de_saude_ativas/Relatorio_cadop.csv"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

var archiveName = regexp.MustCompile(`^([1-4])T([0-9]{4})`)

type DownloadResult struct {
	Success    bool
	OutputPath string
}

// Archive is one quarterly zip published on the portal
type Archive struct {
	Name    string
	URL     string
	Year    int
	Quarter int
}

// Stem is the archive name without extension, e.g. "1T2024"
func (a Archive) Stem() string {
	return strings.TrimSuffix(a.Name, filepath.Ext(a.Name))
}

type Client struct {
	baseURL   string
	http      *http.Client
	appLogger *logger.Logger
}

func NewClient(baseURL string, appLogger *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DemonstracoesURL
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		req.Header.Set("User-Agent", userAgent)
		return nil
	}
	return &Client{baseURL: baseURL, http: client, appLogger: appLogger}
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status for %s: %s", rawURL, resp.Status)
	}
	return resp, nil
}

// ListLinks returns the href of every anchor of an HTML directory listing,
// resolved against pageURL.
func (c *Client) ListLinks(ctx context.Context, pageURL string) ([]string, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	z := html.NewTokenizer(resp.Body)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return links, nil
			}
			return nil, z.Err()
		case html.StartTagToken:
			t := z.Token()
			if t.Data != "a" {
				continue
			}
			for _, attr := range t.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				links = append(links, base.ResolveReference(ref).String())
			}
		}
	}
}

// LatestQuarters walks the year directories of the portal, newest first,
// and returns the most recent limit archives.
func (c *Client) LatestQuarters(ctx context.Context, limit int) ([]Archive, error) {
	const component = "Downloader"

	links, err := c.ListLinks(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.baseURL, err)
	}

	var years []int
	yearURL := make(map[int]string)
	for _, link := range links {
		name := lastSegment(link)
		if y, err := strconv.Atoi(name); err == nil && len(name) == 4 {
			if _, seen := yearURL[y]; !seen {
				years = append(years, y)
			}
			yearURL[y] = strings.TrimSuffix(link, "/") + "/"
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	var archives []Archive
	for _, y := range years {
		if len(archives) >= limit {
			break
		}
		yearLinks, err := c.ListLinks(ctx, yearURL[y])
		if err != nil {
			return nil, fmt.Errorf("failed to list year %d: %w", y, err)
		}

		var found []Archive
		for _, link := range yearLinks {
			name := lastSegment(link)
			m := archiveName.FindStringSubmatch(strings.ToUpper(name))
			if m == nil || !strings.EqualFold(filepath.Ext(name), ".zip") {
				continue
			}
			q, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[2])
			found = append(found, Archive{Name: name, URL: link, Year: year, Quarter: q})
		}
		sort.Slice(found, func(i, j int) bool {
			if found[i].Year != found[j].Year {
				return found[i].Year > found[j].Year
			}
			return found[i].Quarter > found[j].Quarter
		})
		archives = append(archives, found...)
		c.appLogger.Debug(component, "Year listed: year=%d archives=%d", y, len(found))
	}

	if len(archives) > limit {
		archives = archives[:limit]
	}
	return archives, nil
}

func lastSegment(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return filepath.Base(strings.TrimSuffix(u.Path, "/"))
}

// FetchData downloads downloadURL to outputPath
func (c *Client) FetchData(ctx context.Context, downloadURL, outputPath string) DownloadResult {
	const component = "Downloader"

	c.appLogger.Debug(component, "Starting download: url=%s path=%s", downloadURL, outputPath)

	resp, err := c.get(ctx, downloadURL)
	if err != nil {
		c.appLogger.Error(component, "HTTP request failed: url=%s error=%v", downloadURL, err)
		return DownloadResult{Success: false}
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		c.appLogger.Error(component, "Failed to create directory: path=%s error=%v", outputPath, err)
		return DownloadResult{Success: false}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		c.appLogger.Error(component, "Failed to create output file: path=%s error=%v", outputPath, err)
		return DownloadResult{Success: false}
	}
	defer out.Close()

	bytesWritten, err := io.Copy(out, resp.Body)
	if err != nil {
		c.appLogger.Error(component, "Failed to write data to file: path=%s error=%v", outputPath, err)
		return DownloadResult{Success: false}
	}

	c.appLogger.Info(component, "Download completed: path=%s size=%d bytes", outputPath, bytesWritten)
	return DownloadResult{Success: true, OutputPath: outputPath}
}

// FetchQuarters downloads the latest limit archives into zipDir and extracts
// each into extractDir under its quarter stem. Failed archives are logged and
// skipped. It returns the extracted file paths.
func (c *Client) FetchQuarters(ctx context.Context, limit int, zipDir, extractDir string) ([]string, error) {
	const component = "Downloader"

	archives, err := c.LatestQuarters(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.appLogger.Info(component, "Quarters selected: count=%d", len(archives))

	var extracted []string
	for _, a := range archives {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}
		res := c.FetchData(ctx, a.URL, filepath.Join(zipDir, a.Name))
		if !res.Success {
			continue
		}
		paths, err := files.UnzipQuarter(res.OutputPath, extractDir, a.Stem(), c.appLogger)
		if err != nil {
			c.appLogger.Error(component, "Failed to extract archive: file=%s error=%v", a.Name, err)
			continue
		}
		extracted = append(extracted, paths...)
	}
	return extracted, nil
}
