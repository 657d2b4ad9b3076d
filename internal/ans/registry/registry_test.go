package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNormalizesHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Relatorio_cadop.csv")
	content := "\xef\xbb\xbfRegistro_Operadora;CNPJ;Razão Social;Nome_Fantasia;Modalidade;Cidade;UF;DDD;Telefone\n" +
		"000123;11.222.333/0001-81;ALFA SAUDE S.A.;ALFA;Medicina de Grupo;São Paulo;sp;11;3333-4444\n" +
		"456;11444777000161;BETA COOP;;Cooperativa Médica;Recife;PE;;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	enc, err := files.LookupEncoding("utf-8")
	require.NoError(t, err)
	ops, err := Load(path, enc, logger.Discard())
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, "123", ops[0].RegistryID)
	assert.Equal(t, "11222333000181", ops[0].TaxID)
	assert.Equal(t, "ALFA SAUDE S.A.", ops[0].LegalName)
	assert.Equal(t, "SP", ops[0].Region)
	assert.Equal(t, "São Paulo", ops[0].City)
	assert.Equal(t, "11 3333-4444", ops[0].Phone)

	assert.Equal(t, "456", ops[1].RegistryID)
	assert.Equal(t, "", ops[1].TradeName)
	assert.Equal(t, "", ops[1].Phone)
}

func TestLoadRequiresIdentifierColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadop.csv")
	require.NoError(t, os.WriteFile(path, []byte("Razao_Social;UF\nALFA;SP\n"), 0o644))

	_, err := Load(path, nil, logger.Discard())
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), nil, logger.Discard())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
