// Package classifier decides whether an accounting line describes an expense event.
package classifier

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/farxc/ans-expenses/internal/ans/utils"
)

// Policy selects the classification rule. Only one policy is active per run.
type Policy string

const (
	// PolicyStrict matches the "EVENTOS SINISTROS" token sequence used by the ANS chart of accounts
	PolicyStrict Policy = "strict"
	// PolicyLoose matches any of DESPESA, EVENTO or SINISTRO
	PolicyLoose Policy = "loose"
)

var ErrUnknownPolicy = errors.New("unknown classification policy")

var looseKeywords = []string{"DESPESA", "EVENTO", "SINISTRO"}

const strictSequence = " EVENTOS SINISTROS "

// Classifier applies a single policy
type Classifier struct {
	policy Policy
}

// ParsePolicy validates a policy name
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case PolicyStrict, PolicyLoose:
		return p, nil
	case "":
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// New builds a classifier for policy. The name is matched case-insensitively
// and an empty name selects PolicyStrict.
func New(policy Policy) (Classifier, error) {
	parsed, err := ParsePolicy(string(policy))
	if err != nil {
		return Classifier{}, err
	}
	return Classifier{policy: parsed}, nil
}

func (c Classifier) Policy() Policy {
	return c.policy
}

// IsExpense reports whether description denotes an expense under the active policy
func (c Classifier) IsExpense(description string) bool {
	text := Canonical(description)
	if text == "" {
		return false
	}
	if c.policy == PolicyLoose {
		for _, k := range looseKeywords {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	}
	return strings.Contains(" "+text+" ", strictSequence)
}

// Canonical upper-cases text, strips diacritics and turns punctuation into
// single spaces: "Eventos/ Sinistros conhecidos" becomes "EVENTOS SINISTROS CONHECIDOS".
func Canonical(text string) string {
	folded := utils.Fold(text)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}
