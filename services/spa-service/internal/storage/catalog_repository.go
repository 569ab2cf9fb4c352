package storage

import (
	"context"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

// ListActiveServices returns services still offered today (active_until is
// null or in the future), with the role type each one requires.
func (s *Store) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.sid, s.name, s.base_cost::float8, s.duration_minutes, s.rdid, rd.role_type, s.active_until
		FROM services s
		JOIN role_definition rd ON s.rdid = rd.rdid
		WHERE s.active_until IS NULL OR s.active_until >= CURRENT_DATE
		ORDER BY s.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var sv model.Service
		if err := rows.Scan(&sv.SID, &sv.Name, &sv.BaseCost, &sv.DurationMinutes, &sv.RDID, &sv.RoleType, &sv.ActiveUntil); err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Store) GetService(ctx context.Context, sid int64) (model.Service, error) {
	var sv model.Service
	err := s.pool.QueryRow(ctx, `
		SELECT s.sid, s.name, s.base_cost::float8, s.duration_minutes, s.rdid, rd.role_type, s.active_until
		FROM services s
		JOIN role_definition rd ON s.rdid = rd.rdid
		WHERE s.sid = $1
	`, sid).Scan(&sv.SID, &sv.Name, &sv.BaseCost, &sv.DurationMinutes, &sv.RDID, &sv.RoleType, &sv.ActiveUntil)
	if isNoRows(err) {
		return model.Service{}, model.ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	return sv, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rid, room_name FROM room ORDER BY room_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.RID, &r.RoomName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRoom(ctx context.Context, rid int64) (model.Room, error) {
	var r model.Room
	err := s.pool.QueryRow(ctx, `
		SELECT rid, room_name FROM room WHERE rid = $1
	`, rid).Scan(&r.RID, &r.RoomName)
	if isNoRows(err) {
		return model.Room{}, model.ErrNotFound
	}
	if err != nil {
		return model.Room{}, err
	}
	return r, nil
}
