package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/jmoiron/sqlx"
)

type OperatorStore struct {
	db *sqlx.DB
}

const operatorColumns = `registry_id, tax_id, legal_name, trade_name, modality, street, number,
	complement, district, city, region, zip_code, phone, email, registration_date`

// Upsert inserts operators or refreshes the ones already stored
func (s *OperatorStore) Upsert(ctx context.Context, operators []types.Operator) (int, error) {
	query := `INSERT INTO operators (` + operatorColumns + `) VALUES (
		:registry_id,
		:tax_id,
		:legal_name,
		:trade_name,
		:modality,
		:street,
		:number,
		:complement,
		:district,
		:city,
		:region,
		:zip_code,
		:phone,
		:email,
		:registration_date
	) ON CONFLICT (registry_id) DO UPDATE SET
		tax_id = excluded.tax_id,
		legal_name = excluded.legal_name,
		trade_name = excluded.trade_name,
		modality = excluded.modality,
		street = excluded.street,
		number = excluded.number,
		complement = excluded.complement,
		district = excluded.district,
		city = excluded.city,
		region = excluded.region,
		zip_code = excluded.zip_code,
		phone = excluded.phone,
		email = excluded.email,
		registration_date = excluded.registration_date`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, op := range operators {
		if op.RegistryID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, op); err != nil {
			return 0, fmt.Errorf("failed to upsert operator %s: %w", op.RegistryID, err)
		}
		written++
	}
	return written, tx.Commit()
}

// List pages through operators. Search matches the legal name or the tax id digits.
func (s *OperatorStore) List(ctx context.Context, filter OperatorFilter) ([]types.Operator, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	var where []string
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		if digits := utils.OnlyDigits(s); digits != "" && len(digits) == len(strings.Map(dropPunct, s)) {
			where = append(where, "tax_id LIKE ?")
			args = append(args, "%"+digits+"%")
		} else {
			where = append(where, "(UPPER(legal_name) LIKE ? OR UPPER(trade_name) LIKE ?)")
			like := "%" + strings.ToUpper(s) + "%"
			args = append(args, like, like)
		}
	}
	if filter.Region != "" {
		where = append(where, "region = ?")
		args = append(args, strings.ToUpper(filter.Region))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM operators"+clause), args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + operatorColumns + " FROM operators" + clause + " ORDER BY legal_name, registry_id LIMIT ? OFFSET ?"
	var operators []types.Operator
	pageArgs := append(append([]any{}, args...), filter.Limit, (filter.Page-1)*filter.Limit)
	if err := s.db.SelectContext(ctx, &operators, s.db.Rebind(query), pageArgs...); err != nil {
		return nil, 0, err
	}
	return operators, total, nil
}

// dropPunct keeps the characters that may appear in a typed CNPJ
func dropPunct(r rune) rune {
	switch r {
	case '.', '/', '-', ' ':
		return -1
	}
	return r
}

func (s *OperatorStore) GetByTaxID(ctx context.Context, taxID string) (types.Operator, error) {
	var op types.Operator
	query := s.db.Rebind("SELECT " + operatorColumns + " FROM operators WHERE tax_id = ? ORDER BY registry_id LIMIT 1")
	err := s.db.GetContext(ctx, &op, query, utils.OnlyDigits(taxID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Operator{}, ErrNotFound
	}
	return op, err
}

func (s *OperatorStore) Regions(ctx context.Context) ([]string, error) {
	var regions []string
	err := s.db.SelectContext(ctx, &regions, "SELECT DISTINCT region FROM operators WHERE region <> '' ORDER BY region")
	return regions, err
}
