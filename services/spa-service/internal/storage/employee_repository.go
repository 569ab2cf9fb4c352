package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func (s *Store) GetEmployee(ctx context.Context, eid int64) (model.Employee, error) {
	var e model.Employee
	err := s.pool.QueryRow(ctx, `
		SELECT eid, nric_fin_passport_no, name, work_name, gender,
			COALESCE(mobile_number, ''), COALESCE(country_code, ''),
			employment_start, employment_end
		FROM employees
		WHERE eid = $1
	`, eid).Scan(&e.EID, &e.NRIC, &e.Name, &e.WorkName, &e.Gender,
		&e.MobileNumber, &e.CountryCode, &e.EmploymentStart, &e.EmploymentEnd)
	if isNoRows(err) {
		return model.Employee{}, model.ErrNotFound
	}
	if err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, tx pgx.Tx, e *model.Employee) (int64, error) {
	var eid int64
	err := tx.QueryRow(ctx, `
		INSERT INTO employees
			(nric_fin_passport_no, name, work_name, gender, mobile_number, country_code, employment_start, employment_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING eid
	`, e.NRIC, e.Name, e.WorkName, e.Gender, e.MobileNumber, e.CountryCode,
		e.EmploymentStart, e.EmploymentEnd).Scan(&eid)
	if err != nil {
		return 0, err
	}
	return eid, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, tx pgx.Tx, e *model.Employee) error {
	tag, err := tx.Exec(ctx, `
		UPDATE employees
		SET name = $2,
			work_name = $3,
			gender = $4,
			mobile_number = $5,
			country_code = $6,
			employment_start = $7,
			employment_end = $8
		WHERE eid = $1
	`, e.EID, e.Name, e.WorkName, e.Gender, e.MobileNumber, e.CountryCode,
		e.EmploymentStart, e.EmploymentEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// TruncateRolesAfter ends every role of the employee that is still open or
// ends after the cutoff, setting its end date to the cutoff. Returns the
// number of roles ended. Used when employment is terminated: roles must not
// outlive employment.
func (s *Store) TruncateRolesAfter(ctx context.Context, tx pgx.Tx, eid int64, cutoff time.Time) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE roles
		SET end_date = $2
		WHERE eid = $1
		  AND (end_date IS NULL OR end_date > $2)
	`, eid, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) AddRole(ctx context.Context, tx pgx.Tx, eid, rdid int64, start time.Time, end *time.Time) (int64, error) {
	var rid int64
	err := tx.QueryRow(ctx, `
		INSERT INTO roles (eid, rdid, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING rid
	`, eid, rdid, start, end).Scan(&rid)
	if err != nil {
		return 0, err
	}
	return rid, nil
}

// EndRole sets the role's end date to yesterday so it is inactive immediately.
func (s *Store) EndRole(ctx context.Context, tx pgx.Tx, rid int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE roles
		SET end_date = CURRENT_DATE - INTERVAL '1 day'
		WHERE rid = $1
	`, rid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, eid int64) ([]model.Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.rid, r.eid, r.rdid, rd.role_type, r.start_date, r.end_date
		FROM roles r
		JOIN role_definition rd ON r.rdid = rd.rdid
		WHERE r.eid = $1
		ORDER BY r.start_date
	`, eid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		var r model.Role
		if err := rows.Scan(&r.RID, &r.EID, &r.RDID, &r.RoleType, &r.StartDate, &r.EndDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EmployeeHasActiveRole reports whether the employee currently holds a role
// of the given type and is still employed.
func (s *Store) EmployeeHasActiveRole(ctx context.Context, eid int64, roleType string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM employees e
			JOIN roles r ON e.eid = r.eid
				AND r.start_date <= CURRENT_DATE
				AND (r.end_date IS NULL OR r.end_date > CURRENT_DATE)
			JOIN role_definition rd ON r.rdid = rd.rdid
			WHERE e.eid = $1
			AND rd.role_type = $2
			AND (e.employment_end IS NULL OR e.employment_end > CURRENT_DATE)
		)
	`, eid, roleType).Scan(&ok)
	return ok, err
}

func (s *Store) GetRoleDefinitionByType(ctx context.Context, roleType string) (model.RoleDefinition, error) {
	var rd model.RoleDefinition
	err := s.pool.QueryRow(ctx, `
		SELECT rdid, role_type FROM role_definition WHERE role_type = $1
	`, roleType).Scan(&rd.RDID, &rd.RoleType)
	if isNoRows(err) {
		return model.RoleDefinition{}, model.ErrNotFound
	}
	if err != nil {
		return model.RoleDefinition{}, err
	}
	return rd, nil
}
