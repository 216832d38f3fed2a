package storage

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/pkg/errors"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

var pointsSessionTypes = func() []interface{} {
	types := make([]interface{}, 0, len(f1.PointsSessions))

	for _, sessionType := range f1.PointsSessions {
		types = append(types, string(sessionType))
	}

	return types
}()

// Teams returns the teams entered in a season, ordered by name.
func (r *Repository) Teams(ctx context.Context, year int) ([]f1.Team, error) {
	var teams []f1.Team

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, dialect.From(tableTeams).Prepared(true).
			Select("id", "year", "name", "color").
			Where(goqu.C("year").Eq(year)).
			Order(goqu.C("name").Asc()))

		if err != nil {
			return err
		}

		for _, row := range rows {
			team, err := decodeTeam(row)

			if err != nil {
				return decodeFailed(tableTeams, err)
			}

			teams = append(teams, team)
		}

		return nil
	})

	return teams, err
}

// Drivers returns the drivers of a season with their team. A zero teamID
// returns every team's drivers.
func (r *Repository) Drivers(ctx context.Context, year int, teamID int64) ([]f1.Driver, error) {
	var drivers []f1.Driver

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		where := []goqu.Expression{goqu.I("d.year").Eq(year)}

		if teamID != 0 {
			where = append(where, goqu.I("d.team_id").Eq(teamID))
		}

		rows, err := r.query(ctx, conn, dialect.From(goqu.T(tableDrivers).As("d")).Prepared(true).
			Join(goqu.T(tableTeams).As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("d.team_id")))).
			Select(
				goqu.I("d.driver_id").As("driver_id"),
				goqu.I("d.year").As("year"),
				goqu.I("d.number").As("number"),
				goqu.I("d.first_name").As("first_name"),
				goqu.I("d.last_name").As("last_name"),
				goqu.I("d.country_code").As("country_code"),
				goqu.I("d.team_id").As("team_id"),
				goqu.I("t.name").As("team_name"),
				goqu.I("t.color").As("team_color"),
			).
			Where(where...).
			Order(goqu.I("t.name").Asc(), goqu.I("d.last_name").Asc(), goqu.I("d.driver_id").Asc()))

		if err != nil {
			return err
		}

		for _, row := range rows {
			driver, err := decodeDriver(row)

			if err != nil {
				return decodeFailed(tableDrivers, err)
			}

			drivers = append(drivers, driver)
		}

		return nil
	})

	return drivers, err
}

// Results returns the classification of a session: classified drivers by
// position, then the rest by driver id. A result whose driver has no entry
// for the season keeps an empty name and team.
func (r *Repository) Results(ctx context.Context, sessionID int64) ([]f1.RaceResult, error) {
	var results []f1.RaceResult

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("id").Eq(sessionID))

		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			return errors.Wrapf(ErrNotFound, "session %d", sessionID)
		}

		rows, err := r.query(ctx, conn, dialect.From(goqu.T(tableResults).As("r")).Prepared(true).
			Join(goqu.T(tableSessions).As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("r.session_id")))).
			Join(goqu.T(tableEvents).As("e"), goqu.On(goqu.I("e.id").Eq(goqu.I("s.event_id")))).
			LeftJoin(goqu.T(tableDrivers).As("d"), goqu.On(
				goqu.I("d.driver_id").Eq(goqu.I("r.driver_id")),
				goqu.I("d.year").Eq(goqu.I("e.year")),
			)).
			LeftJoin(goqu.T(tableTeams).As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("d.team_id")))).
			Select(
				goqu.I("r.session_id").As("session_id"),
				goqu.I("r.driver_id").As("driver_id"),
				goqu.I("r.position").As("position"),
				goqu.I("r.grid_position").As("grid_position"),
				goqu.I("r.points").As("points"),
				goqu.I("r.status").As("status"),
				goqu.I("r.race_time").As("race_time"),
				goqu.I("d.number").As("number"),
				goqu.I("d.first_name").As("first_name"),
				goqu.I("d.last_name").As("last_name"),
				goqu.I("t.name").As("team_name"),
				goqu.I("t.color").As("team_color"),
			).
			Where(goqu.I("r.session_id").Eq(sessionID)).
			Order(goqu.L("r.position IS NULL").Asc(), goqu.I("r.position").Asc(), goqu.I("r.driver_id").Asc()))

		if err != nil {
			return err
		}

		for _, row := range rows {
			result, err := decodeResult(row)

			if err != nil {
				return decodeFailed(tableResults, err)
			}

			results = append(results, result)
		}

		return nil
	})

	return results, err
}

func (r *Repository) pointsFrom(year int) *goqu.SelectDataset {
	return dialect.From(goqu.T(tableResults).As("r")).Prepared(true).
		Join(goqu.T(tableSessions).As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("r.session_id")))).
		Join(goqu.T(tableEvents).As("e"), goqu.On(goqu.I("e.id").Eq(goqu.I("s.event_id")))).
		Where(
			goqu.I("e.year").Eq(year),
			goqu.I("s.type").In(pointsSessionTypes...),
		)
}

// DriverStandings sums race and sprint points per driver for a season.
// Drivers level on points share the order of their ids.
func (r *Repository) DriverStandings(ctx context.Context, year int) ([]f1.DriverStanding, error) {
	var standings []f1.DriverStanding

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, r.pointsFrom(year).
			LeftJoin(goqu.T(tableDrivers).As("d"), goqu.On(
				goqu.I("d.driver_id").Eq(goqu.I("r.driver_id")),
				goqu.I("d.year").Eq(goqu.I("e.year")),
			)).
			LeftJoin(goqu.T(tableTeams).As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("d.team_id")))).
			Select(
				goqu.I("r.driver_id").As("driver_id"),
				goqu.SUM(goqu.I("r.points")).As("points"),
				goqu.MAX(goqu.I("d.first_name")).As("first_name"),
				goqu.MAX(goqu.I("d.last_name")).As("last_name"),
				goqu.MAX(goqu.I("t.name")).As("team_name"),
				goqu.MAX(goqu.I("t.color")).As("team_color"),
			).
			GroupBy(goqu.I("r.driver_id")).
			Order(goqu.C("points").Desc(), goqu.I("r.driver_id").Asc()))

		if err != nil {
			return err
		}

		for i, row := range rows {
			standing, err := decodeDriverStanding(row)

			if err != nil {
				return decodeFailed(tableResults, err)
			}

			standing.Position = i + 1
			standings = append(standings, standing)
		}

		return nil
	})

	return standings, err
}

// ConstructorStandings sums the points of each team's drivers for a season.
// Results of drivers without a season entry count for no team.
func (r *Repository) ConstructorStandings(ctx context.Context, year int) ([]f1.ConstructorStanding, error) {
	var standings []f1.ConstructorStanding

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, r.pointsFrom(year).
			Join(goqu.T(tableDrivers).As("d"), goqu.On(
				goqu.I("d.driver_id").Eq(goqu.I("r.driver_id")),
				goqu.I("d.year").Eq(goqu.I("e.year")),
			)).
			Join(goqu.T(tableTeams).As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("d.team_id")))).
			Select(
				goqu.I("t.id").As("team_id"),
				goqu.MAX(goqu.I("t.name")).As("team_name"),
				goqu.MAX(goqu.I("t.color")).As("team_color"),
				goqu.SUM(goqu.I("r.points")).As("points"),
			).
			GroupBy(goqu.I("t.id")).
			Order(goqu.C("points").Desc(), goqu.C("team_name").Asc()))

		if err != nil {
			return err
		}

		for i, row := range rows {
			standing, err := decodeConstructorStanding(row)

			if err != nil {
				return decodeFailed(tableTeams, err)
			}

			standing.Position = i + 1
			standings = append(standings, standing)
		}

		return nil
	})

	return standings, err
}

func (r *Repository) insertTeam(ctx context.Context, conn *Conn, team f1.Team) error {
	_, err := r.exec(ctx, conn, dialect.Insert(tableTeams).Prepared(true).Rows(goqu.Record{
		"id":    team.ID,
		"year":  team.Year,
		"name":  team.Name,
		"color": team.Color,
	}))

	return err
}

func (r *Repository) insertDriver(ctx context.Context, conn *Conn, driver f1.Driver) error {
	_, err := r.exec(ctx, conn, dialect.Insert(tableDrivers).Prepared(true).Rows(goqu.Record{
		"year":         driver.Year,
		"driver_id":    driver.ID,
		"number":       driver.Number,
		"first_name":   driver.FirstName,
		"last_name":    driver.LastName,
		"country_code": driver.CountryCode,
		"team_id":      driver.TeamID,
	}))

	return err
}

// nullIfZero stores an unset position or time as NULL.
func nullIfZero(v int64) interface{} {
	if v == 0 {
		return nil
	}

	return v
}

func (r *Repository) insertResults(ctx context.Context, conn *Conn, sessionID int64, results []f1.RaceResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(results))

	for _, result := range results {
		if result.DriverID == "" || result.Position < 0 || result.GridPosition < 0 || result.Points < 0 {
			return errors.Wrapf(ErrInvalidResult, "session %d: %s", sessionID, result)
		}

		rows = append(rows, goqu.Record{
			"session_id":    sessionID,
			"driver_id":     result.DriverID,
			"position":      nullIfZero(int64(result.Position)),
			"grid_position": nullIfZero(int64(result.GridPosition)),
			"points":        result.Points,
			"status":        result.Status,
			"race_time":     nullIfZero(result.RaceTime.Milliseconds()),
		})
	}

	_, err := r.exec(ctx, conn, dialect.Insert(tableResults).Prepared(true).Rows(rows...))

	return err
}
