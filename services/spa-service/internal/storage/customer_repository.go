package storage

import (
	"context"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func (s *Store) CreateCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	var cid int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (nric_fin_passport_no, name, gender, mobile_number, country_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING cid
	`, c.NRIC, c.Name, c.Gender, c.MobileNumber, c.CountryCode).Scan(&cid)
	if err != nil {
		return 0, err
	}
	return cid, nil
}

func (s *Store) GetCustomer(ctx context.Context, cid int64) (model.Customer, error) {
	var c model.Customer
	err := s.pool.QueryRow(ctx, `
		SELECT cid, nric_fin_passport_no, name, gender, mobile_number, country_code
		FROM customers
		WHERE cid = $1
	`, cid).Scan(&c.CID, &c.NRIC, &c.Name, &c.Gender, &c.MobileNumber, &c.CountryCode)
	if isNoRows(err) {
		return model.Customer{}, model.ErrNotFound
	}
	if err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// SearchCustomers matches by name or mobile number, case-insensitive
// substring, capped at 10 rows like the counter UI expects.
func (s *Store) SearchCustomers(ctx context.Context, query, by string) ([]model.Customer, error) {
	column := "name"
	if by == "mobile" {
		column = "mobile_number"
	}
	rows, err := s.pool.Query(ctx, `
		SELECT cid, nric_fin_passport_no, name, gender, mobile_number, country_code
		FROM customers
		WHERE `+column+` ILIKE $1
		ORDER BY name
		LIMIT 10
	`, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.CID, &c.NRIC, &c.Name, &c.Gender, &c.MobileNumber, &c.CountryCode); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListNationCodes(ctx context.Context) ([]model.NationCode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country_code, country_name
		FROM nationcode
		ORDER BY country_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NationCode
	for rows.Next() {
		var n model.NationCode
		if err := rows.Scan(&n.CountryCode, &n.CountryName); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
