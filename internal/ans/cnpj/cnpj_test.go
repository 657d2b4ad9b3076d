package cnpj

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"11222333000181", "11.222.333/0001-81", true},
		{"11.222.333/0001-81", "11.222.333/0001-81", true},
		{"11444777000161", "11.444.777/0001-61", true},
		{"11222333000182", Invalid, false},
		{"1122233300018", Invalid, false},
		{"112223330001810", Invalid, false},
		{"00000000000000", Invalid, false},
		{"", Invalid, false},
	}

	for _, tt := range tests {
		got, ok := Validate(tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRepeatedDigitsAlwaysFail(t *testing.T) {
	for d := 0; d <= 9; d++ {
		raw := strings.Repeat(strconv.Itoa(d), 14)
		assert.False(t, IsValid(raw), raw)
	}
}

func TestCheckDigitsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var b strings.Builder
		for j := 0; j < 12; j++ {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
		base := b.String()
		d1, d2 := CheckDigits(base)
		full := base + strconv.Itoa(d1) + strconv.Itoa(d2)
		if strings.Count(full, full[:1]) == 14 {
			continue
		}

		assert.True(t, IsValid(full), full)
		got1, got2 := CheckDigits(full[:12])
		assert.Equal(t, [2]int{int(full[12] - '0'), int(full[13] - '0')}, [2]int{got1, got2})

		wrong := full[:13] + strconv.Itoa((d2+1)%10)
		assert.False(t, IsValid(wrong), wrong)
	}
}
