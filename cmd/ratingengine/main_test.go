package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	service "github.com/prodigyranking/ratingengine/internal/app"
)

const testDataset = `
entities:
  - {id: 1, name: Alex Berg, sub_type: C, birth_year: 2009, league: OHL}
  - {id: 2, name: Erik Lund, sub_type: D, birth_year: 2009, league: J20 Nationell}
records:
  - {entity_id: 1, source: ep_views, value: 15000}
  - {entity_id: 1, source: league, key: OHL}
  - {entity_id: 2, source: league, key: J20 Nationell}
counters:
  - {entity_id: 1, goals: 10, assists: 12, views: 300}
  - {entity_id: 2, goals: 3, assists: 8, views: 120}
`

// setupCLI writes a config and dataset into a temp dir and returns the
// config path and the dataset path.
func setupCLI(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := "database_path: " + filepath.Join(dir, "ratings.db") + "\nlog_level: error\nworker_count: 2\n"
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dataPath := filepath.Join(dir, "data.yaml")
	if err := os.WriteFile(dataPath, []byte(testDataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return cfgPath, dataPath
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseDate(t *testing.T) {
	Convey("Given date flags", t, func() {
		Convey("An empty flag selects today", func() {
			d, err := parseDate("  ")
			So(err, ShouldBeNil)
			So(d.IsZero(), ShouldBeTrue)
		})

		Convey("A calendar date parses in UTC", func() {
			d, err := parseDate("2025-01-13")
			So(err, ShouldBeNil)
			So(d.Equal(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Other layouts are rejected", func() {
			_, err := parseDate("13/01/2025")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestModeNames(t *testing.T) {
	Convey("The weekly mode help lists every mode", t, func() {
		So(modeNames(), ShouldEqual, "full|snapshot-only|delta-only|dry-run")
	})
}

func TestCommands(t *testing.T) {
	Convey("Given a fresh database and a dataset", t, func() {
		cfgPath, dataPath := setupCLI(t)

		Convey("ingest loads the dataset", func() {
			out, err := execute("ingest", "--config", cfgPath, "--file", dataPath)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "ingested 2 entities, 3 records, 2 counter rows")
		})

		Convey("generate writes a dataset that ingests", func() {
			genPath := filepath.Join(filepath.Dir(cfgPath), "generated.yaml")
			out, err := execute("generate", "--entities", "25", "--seed", "3", "--out", genPath)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "wrote 25 entities")

			out, err = execute("ingest", "--config", cfgPath, "--file", genPath)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "ingested 25 entities")

			out, err = execute("rebuild", "--config", cfgPath, "--as-of", "2025-01-13")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "25 entities")
		})

		Convey("ingest requires --file", func() {
			_, err := execute("ingest", "--config", cfgPath)
			So(err, ShouldNotBeNil)
		})

		Convey("audit before any rebuild says so", func() {
			out, err := execute("audit", "--config", cfgPath)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "no published run yet")
		})

		Convey("weekly rejects unknown modes", func() {
			_, err := execute("weekly", "--config", cfgPath, "--mode", "monthly")
			So(errors.Is(err, service.ErrUnknownMode), ShouldBeTrue)
		})

		Convey("rebuild rejects a malformed --as-of", func() {
			_, err := execute("rebuild", "--config", cfgPath, "--as-of", "yesterday")
			So(err, ShouldNotBeNil)
		})

		Convey("After ingest and rebuild", func() {
			_, err := execute("ingest", "--config", cfgPath, "--file", dataPath)
			So(err, ShouldBeNil)

			out, err := execute("rebuild", "--config", cfgPath, "--as-of", "2025-01-13", "--json")
			So(err, ShouldBeNil)
			var sum service.RunSummary
			So(json.Unmarshal([]byte(out), &sum), ShouldBeNil)
			So(sum.Entities, ShouldEqual, 2)
			So(sum.Published, ShouldBeTrue)

			Convey("leaderboard lists both entities in rank order", func() {
				out, err := execute("leaderboard", "--config", cfgPath, "--json")
				So(err, ShouldBeNil)
				var entries []repository.Entry
				So(json.Unmarshal([]byte(out), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[0].Overall, ShouldBeGreaterThanOrEqualTo, entries[1].Overall)
			})

			Convey("leaderboard prints a table", func() {
				out, err := execute("leaderboard", "--config", cfgPath, "--limit", "1")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "RANK")
				So(out, ShouldContainSubstring, "OVERALL")
			})

			Convey("audit reports the published run", func() {
				out, err := execute("audit", "--config", cfgPath, "--json")
				So(err, ShouldBeNil)
				var rep struct {
					RunID    string `json:"run_id"`
					Entities int    `json:"entities"`
				}
				So(json.Unmarshal([]byte(out), &rep), ShouldBeNil)
				So(rep.RunID, ShouldEqual, sum.RunID)
				So(rep.Entities, ShouldEqual, 2)
			})

			Convey("capture-snapshot stores once per date", func() {
				out, err := execute("capture-snapshot", "--config", cfgPath, "--date", "2025-01-13")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "stored for 2 entities")

				out, err = execute("capture-snapshot", "--config", cfgPath, "--date", "2025-01-13")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "skipped")
			})

			Convey("a dry-run weekly job does not publish", func() {
				out, err := execute("weekly", "--config", cfgPath, "--mode", "dry-run", "--date", "2025-01-20", "--json")
				So(err, ShouldBeNil)
				var res service.WeeklyResult
				So(json.Unmarshal([]byte(out), &res), ShouldBeNil)
				So(res.Snapshot, ShouldBeNil)
				So(res.Run, ShouldNotBeNil)
				So(res.Run.Published, ShouldBeFalse)
			})
		})
	})
}
