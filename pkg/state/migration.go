package state

import (
	"encoding/json"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// migration rewrites a state document from one schema version to the
// next. Each step is total: it accepts any valid document of its input
// version and cannot partially apply.
type migration func(data []byte) ([]byte, error)

// migrations[v] migrates version v to v+1.
var migrations = map[int]migration{
	1: migrateV1ToV2,
}

// migrate chains the migration steps from the detected version up to
// CurrentVersion.
func migrate(data []byte, from int) ([]byte, error) {
	for v := from; v < CurrentVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, errors.Newf(errors.ErrStateMigration, "no migration from state version %d", v)
		}
		migrated, err := step(data)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrStateMigration, "migration from version %d failed", v)
		}
		data = migrated
	}
	return data, nil
}

// v1 stored a flat map of source id to deployed-file list, with no
// per-source metadata and no global metadata block.
type fileV1 struct {
	Version     int                             `json:"version"`
	Deployments map[string][]types.DeployedFile `json:"deployments"`
}

func migrateV1ToV2(data []byte) ([]byte, error) {
	var old fileV1
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, err
	}

	st := emptyFile()
	for sourceID, files := range old.Deployments {
		rec := &types.DeploymentRecord{
			SourceID:      sourceID,
			DeployedFiles: files,
		}
		// v1 had no per-source timestamp; the newest file stands in.
		for _, f := range files {
			if f.DeployedAt.After(rec.LastDeployedAt) {
				rec.LastDeployedAt = f.DeployedAt
			}
		}
		st.Sources[sourceID] = rec
		st.Metadata.TotalFiles += len(files)
	}

	return json.Marshal(st)
}
