package store

import (
	"database/sql"

	"f1standingsbot/pkg/standings"
)

// Statements only use "$n" placeholders and "||" so they run unchanged on
// PostgreSQL and SQLite.

func buildSelectSeasonsCommand() (string, func(*sql.Rows) ([]standings.Season, error)) {
	return `SELECT DISTINCT year FROM races ORDER BY year DESC`, processSelectSeasonsRows
}

func processSelectSeasonsRows(rows *sql.Rows) ([]standings.Season, error) {
	defer rows.Close()

	seasons := make([]standings.Season, 0)
	for rows.Next() {
		var year int
		err := rows.Scan(&year)
		if err != nil {
			return seasons, err
		}
		seasons = append(seasons, standings.Season(year))
	}
	return seasons, rows.Err()
}

// Ties on points are broken by name and then by driver id.
func buildSelectStandingsCommand(season standings.Season) (string, []any, func(*sql.Rows) ([]standings.DriverStanding, error)) {
	query := `SELECT d.forename || ' ' || d.surname AS driver_name,
		CAST(COALESCE(SUM(ds.points), 0) AS DOUBLE PRECISION) AS total_points
	FROM drivers d
	JOIN driver_standings ds ON d.driver_id = ds.driver_id
	JOIN races r ON ds.race_id = r.race_id
	WHERE r.year = $1
	GROUP BY d.driver_id, d.forename, d.surname
	ORDER BY total_points DESC, driver_name ASC, d.driver_id ASC`
	return query, []any{int(season)}, processSelectStandingsRows
}

func processSelectStandingsRows(rows *sql.Rows) ([]standings.DriverStanding, error) {
	defer rows.Close()

	table := make([]standings.DriverStanding, 0)
	for rows.Next() {
		var name string
		var points float64
		err := rows.Scan(&name, &points)
		if err != nil {
			return table, err
		}
		table = append(table, standings.DriverStanding{
			Driver: name,
			Points: points,
		})
	}
	return table, rows.Err()
}
