// Package registry loads the ANS operator registry (Relatorio_cadop).
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding"
)

var ErrMissingColumns = errors.New("registry lacks required columns")

// columns lists, per operator field, the accepted normalized header names
var columns = struct {
	registryID, taxID, legalName, tradeName, modality, street, number, complement,
	district, city, region, zipCode, areaCode, phone, email, registrationDate []string
}{
	registryID:       []string{"REGISTRO_OPERADORA", "REGISTRO_ANS", "REG_ANS"},
	taxID:            []string{"CNPJ"},
	legalName:        []string{"RAZAO_SOCIAL"},
	tradeName:        []string{"NOME_FANTASIA"},
	modality:         []string{"MODALIDADE"},
	street:           []string{"LOGRADOURO"},
	number:           []string{"NUMERO"},
	complement:       []string{"COMPLEMENTO"},
	district:         []string{"BAIRRO"},
	city:             []string{"CIDADE", "MUNICIPIO"},
	region:           []string{"UF"},
	zipCode:          []string{"CEP"},
	areaCode:         []string{"DDD"},
	phone:            []string{"TELEFONE"},
	email:            []string{"ENDERECO_ELETRONICO", "EMAIL"},
	registrationDate: []string{"DATA_REGISTRO_ANS", "DATA_REGISTRO"},
}

// Load reads a ';'-delimited registry file. Header matching ignores case and
// diacritics, so "Razão Social" and "RAZAO_SOCIAL" are the same column.
func Load(path string, enc encoding.Encoding, appLogger *logger.Logger) ([]types.Operator, error) {
	const component = "Registry"

	rc, err := files.OpenDecoded(path, enc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	df := dataframe.ReadCSV(rc,
		dataframe.WithDelimiter(files.Delimiter),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, df.Err)
	}
	if err := df.SetNames(schema.NormalizeHeaders(df.Names())...); err != nil {
		return nil, fmt.Errorf("failed to normalize registry header: %w", err)
	}

	operators, err := FromFrame(&df)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	appLogger.Info(component, "Registry loaded: file=%s operators=%d", path, len(operators))
	return operators, nil
}

// FromFrame maps a frame with normalized headers to operators
func FromFrame(df *dataframe.DataFrame) ([]types.Operator, error) {
	names := df.Names()
	pick := func(candidates []string) []string {
		for _, c := range candidates {
			for _, n := range names {
				if n == c {
					return utils.ColumnValues(n, df)
				}
			}
		}
		return nil
	}

	registryID := pick(columns.registryID)
	taxID := pick(columns.taxID)
	if registryID == nil || taxID == nil {
		return nil, fmt.Errorf("%w: need %s and %s", ErrMissingColumns, columns.registryID[0], columns.taxID[0])
	}

	legalName := pick(columns.legalName)
	tradeName := pick(columns.tradeName)
	modality := pick(columns.modality)
	street := pick(columns.street)
	number := pick(columns.number)
	complement := pick(columns.complement)
	district := pick(columns.district)
	city := pick(columns.city)
	region := pick(columns.region)
	zipCode := pick(columns.zipCode)
	areaCode := pick(columns.areaCode)
	phone := pick(columns.phone)
	email := pick(columns.email)
	registrationDate := pick(columns.registrationDate)

	operators := make([]types.Operator, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		operators = append(operators, types.Operator{
			RegistryID:       utils.CanonicalID(at(registryID, i)),
			TaxID:            utils.OnlyDigits(at(taxID, i)),
			LegalName:        at(legalName, i),
			TradeName:        at(tradeName, i),
			Modality:         at(modality, i),
			Street:           at(street, i),
			Number:           at(number, i),
			Complement:       at(complement, i),
			District:         at(district, i),
			City:             at(city, i),
			Region:           strings.ToUpper(at(region, i)),
			ZipCode:          at(zipCode, i),
			Phone:            strings.TrimSpace(at(areaCode, i) + " " + at(phone, i)),
			Email:            at(email, i),
			RegistrationDate: at(registrationDate, i),
		})
	}
	return operators, nil
}

func at(values []string, i int) string {
	if values == nil {
		return ""
	}
	return strings.TrimSpace(values[i])
}
