package containerinit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/pkgrun/pkg/types"
)

var bucketProcesses = []byte("processes")

// ProcessRecord is one spawned process's journal entry: enough to report
// Output for a process that already exited, including one that exited
// before containerinitd's last restart.
type ProcessRecord struct {
	Pid       types.ProcessId      `json:"pid"`
	Gid       types.ProcessGroupId `json:"gid"`
	Command   string               `json:"command"`
	Args      []string             `json:"args"`
	StartedAt time.Time            `json:"startedAt"`
	ExitCode  *int                 `json:"exitCode,omitempty"`
	Stdout    string               `json:"stdout,omitempty"`
	Stderr    string               `json:"stderr,omitempty"`
}

// Journal persists ProcessRecords across containerinitd restarts. Grounded
// on pkg/storage/boltdb.go's BoltStore: one bucket, JSON-encoded values
// keyed by a string id, Put-based upsert.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens (creating if needed) the bbolt-backed journal under
// dataDir/containerinit.db.
func OpenJournal(dataDir string) (*Journal, error) {
	dbPath := filepath.Join(dataDir, "containerinit.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", dbPath, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProcesses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func processKey(pid types.ProcessId) []byte {
	return []byte(fmt.Sprintf("%d", pid))
}

// Put upserts a process record.
func (j *Journal) Put(rec ProcessRecord) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketProcesses).Put(processKey(rec.Pid), data)
	})
}

// Get looks up a process record by pid.
func (j *Journal) Get(pid types.ProcessId) (ProcessRecord, bool, error) {
	var rec ProcessRecord
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProcesses).Get(processKey(pid))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// ListByGroup returns every record started under gid. Supervisor.SignalGroup
// does not call it; it signals only processes in its in-memory table.
func (j *Journal) ListByGroup(gid types.ProcessGroupId) ([]ProcessRecord, error) {
	var recs []ProcessRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcesses).ForEach(func(_, v []byte) error {
			var rec ProcessRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Gid == gid {
				recs = append(recs, rec)
			}
			return nil
		})
	})
	return recs, err
}

// Delete removes a process's record. Supervisor.Output does not call it, so
// records stay in the journal after their Output has been collected.
func (j *Journal) Delete(pid types.ProcessId) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcesses).Delete(processKey(pid))
	})
}
