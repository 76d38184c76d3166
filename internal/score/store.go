package score

import (
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Record is one finished session.
type Record struct {
	ID     uuid.UUID
	Sum    string
	Rate   float64
	Total  int64
	Played time.Time
	Events []game.Event
}

// Store keeps play history in a sqlite database.
type Store struct {
	db *sql.DB
}

// LineEvents is the stored form of the events of one line. Seq keeps the
// position of every event in the session log.
type LineEvents struct {
	Line    int
	Seq     []int
	Notes   []int
	Kinds   []game.Judgement
	Offsets []time.Duration
	At      []time.Duration
}

func compactEvents(events []game.Event) []LineEvents {
	lineCount := 0
	for _, e := range events {
		if e.Line >= lineCount {
			lineCount = e.Line + 1
		}
	}
	les := make([]LineEvents, lineCount)
	for i, e := range events {
		le := &les[e.Line]
		le.Line = e.Line
		le.Seq = append(le.Seq, i)
		le.Notes = append(le.Notes, e.Note)
		le.Kinds = append(le.Kinds, e.Kind)
		le.Offsets = append(le.Offsets, e.Offset)
		le.At = append(le.At, e.At)
	}
	return les
}

func uncompactEvents(les []LineEvents) ([]game.Event, error) {
	type indexed struct {
		seq int
		e   game.Event
	}
	var all []indexed
	for _, le := range les {
		n := len(le.Seq)
		if len(le.Notes) != n || len(le.Kinds) != n || len(le.Offsets) != n || len(le.At) != n {
			return nil, errors.Errorf("line %d has ragged event columns", le.Line)
		}
		for i := 0; i < n; i++ {
			all = append(all, indexed{le.Seq[i], game.Event{
				Note:   le.Notes[i],
				Line:   le.Line,
				Kind:   le.Kinds[i],
				Offset: le.Offsets[i],
				At:     le.At[i],
			}})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	events := make([]game.Event, len(all))
	for i, x := range all {
		events[i] = x.e
	}
	return events, nil
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if nil != err {
		return nil, errors.Wrapf(err, "unable to open %v", path)
	}

	initStatement := `
	create table if not exists records
	  (
		  id text not null primary key,
		  sum text not null,
		  rate real,
		  total integer,
		  played integer,
		  events blob
	  );
	create index if not exists records_sum on records(sum);
	create table if not exists offsets
	  (
		  sum text not null primary key,
		  offset_ns integer
	  );
	`
	if _, err = db.Exec(initStatement); nil != err {
		db.Close()
		return nil, errors.Wrap(err, "unable to create records table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(chart *game.Chart, events []game.Event, rate float64) (Record, error) {
	r := Record{
		ID:     uuid.New(),
		Sum:    chart.Sum(),
		Rate:   rate,
		Total:  chart.NoteCount,
		Played: time.Now().UTC().Truncate(time.Second),
		Events: events,
	}
	data, err := json.Marshal(compactEvents(events))
	if nil != err {
		return r, errors.Wrap(err, "unable to marshal events")
	}
	_, err = s.db.Exec(
		"insert into records(id, sum, rate, total, played, events) values(?, ?, ?, ?, ?, ?)",
		r.ID.String(), r.Sum, r.Rate, r.Total, r.Played.Unix(), data,
	)
	if nil != err {
		return r, errors.Wrap(err, "unable to save record")
	}
	return r, nil
}

// Load returns every record of the chart with the given sum, oldest first.
func (s *Store) Load(sum string) ([]Record, error) {
	rows, err := s.db.Query("select id, sum, rate, total, played, events from records where sum = ? order by played", sum)
	if nil != err {
		return nil, errors.Wrap(err, "unable to load records")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r      Record
			id     string
			played int64
			data   []byte
		)
		if err := rows.Scan(&id, &r.Sum, &r.Rate, &r.Total, &played, &data); nil != err {
			return records, errors.Wrap(err, "unable to scan record")
		}
		if r.ID, err = uuid.Parse(id); nil != err {
			return records, errors.Wrapf(err, "record has bad id %q", id)
		}
		var les []LineEvents
		if err := json.Unmarshal(data, &les); nil != err {
			return records, errors.Wrapf(err, "unable to unmarshal record %v", id)
		}
		if r.Events, err = uncompactEvents(les); nil != err {
			return records, errors.Wrapf(err, "record %v", id)
		}
		r.Played = time.Unix(played, 0).UTC()
		records = append(records, r)
	}
	return records, errors.Wrap(rows.Err(), "unable to read records")
}

// Replay recomputes the final score of a record.
func Replay(r Record) State {
	return Fold(r.Total, r.Events)
}

// Offset is the chart specific offset added to the global static offset,
// zero for charts without one.
func (s *Store) Offset(sum string) (time.Duration, error) {
	var offset int64
	err := s.db.QueryRow("select offset_ns from offsets where sum = ?", sum).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if nil != err {
		return 0, errors.Wrapf(err, "unable to load offset of %v", sum)
	}
	return time.Duration(offset), nil
}

func (s *Store) SetOffset(sum string, offset time.Duration) error {
	_, err := s.db.Exec(
		"insert into offsets (sum, offset_ns) values (?, ?) on conflict(sum) do update set offset_ns = excluded.offset_ns",
		sum, int64(offset),
	)
	return errors.Wrapf(err, "unable to save offset of %v", sum)
}
