package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"flyq/pkg/crtp"
)

// Recorder keeps every decoded packet for later replay and inspection.
type Recorder struct {
	db *sql.DB
}

func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS packets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		client TEXT,
		kind TEXT NOT NULL,
		armed INTEGER,
		roll REAL,
		pitch REAL,
		yaw REAL,
		thrust INTEGER,
		raw TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Recorder{db: db}, nil
}

func (r *Recorder) Record(ts time.Time, client string, p crtp.Packet, raw []byte) error {
	var armed sql.NullBool
	if p.Kind == crtp.KindArm {
		armed = sql.NullBool{Bool: p.Arm, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO packets (ts, client, kind, armed, roll, pitch, yaw, thrust, raw) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), client, p.Kind.String(), armed,
		p.Setpoint.Roll, p.Setpoint.Pitch, p.Setpoint.Yaw, int64(p.Setpoint.Thrust),
		crtp.Hex(raw),
	)

	return err
}

// Counts returns the number of recorded packets per kind.
func (r *Recorder) Counts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT kind, COUNT(*) FROM packets GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]int)

	for rows.Next() {
		var kind string
		var n int

		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}

		res[kind] = n
	}

	return res, rows.Err()
}

// Setpoints returns recorded commander setpoints in arrival order.
func (r *Recorder) Setpoints() ([]crtp.Setpoint, error) {
	rows, err := r.db.Query(`SELECT roll, pitch, yaw, thrust FROM packets WHERE kind = ? ORDER BY id`, crtp.KindCommander.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []crtp.Setpoint

	for rows.Next() {
		var roll, pitch, yaw float64
		var thrust int64

		if err := rows.Scan(&roll, &pitch, &yaw, &thrust); err != nil {
			return nil, err
		}

		res = append(res, crtp.Setpoint{
			Roll:   float32(roll),
			Pitch:  float32(pitch),
			Yaw:    float32(yaw),
			Thrust: uint16(thrust),
		})
	}

	return res, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
