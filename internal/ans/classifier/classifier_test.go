package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictPolicy(t *testing.T) {
	c, err := New(PolicyStrict)
	require.NoError(t, err)

	tests := map[string]bool{
		"EVENTOS/ SINISTROS CONHECIDOS OU AVISADOS": true,
		"Eventos/Sinistros":                         true,
		"  eventos   -  sinistros  ":                true,
		"DESPESAS ADMINISTRATIVAS":                  false,
		"EVENTO SINISTRO":                           false,
		"SINISTROS EVENTOS":                         false,
		"PROVISAO DE EVENTOSSINISTROS":              false,
		"":                                          false,
	}
	for desc, want := range tests {
		assert.Equal(t, want, c.IsExpense(desc), desc)
	}
}

func TestLoosePolicy(t *testing.T) {
	c, err := New(PolicyLoose)
	require.NoError(t, err)

	assert.True(t, c.IsExpense("Despesas administrativas"))
	assert.True(t, c.IsExpense("evento indenizável"))
	assert.True(t, c.IsExpense("SINISTROS RETIDOS"))
	assert.False(t, c.IsExpense("RECEITA DE CONTRAPRESTACOES"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy(" LOOSE ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLoose, p)

	_, err = ParsePolicy("both")
	assert.ErrorIs(t, err, ErrUnknownPolicy)

	_, err = New("both")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "EVENTOS SINISTROS CONHECIDOS", Canonical("Eventos/ Sinistros conhecidos"))
	assert.Equal(t, "PROVISAO TECNICA", Canonical("provisão-técnica."))
}

func TestNewNormalizesPolicyName(t *testing.T) {
	c, err := New("LOOSE")
	require.NoError(t, err)
	assert.Equal(t, PolicyLoose, c.Policy())
	assert.True(t, c.IsExpense("DESPESA ADMINISTRATIVA"))

	c, err = New("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, c.Policy())
	assert.False(t, c.IsExpense("DESPESA ADMINISTRATIVA"))
}
