package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// inTx runs fn in a new transaction, unless the service already passed one in.
func (repo repository) inTx(ctx context.Context, svcExec []core.DBExecutor, fn func(exe core.DBExecutor) error) error {
	exe := repo.getExec(svcExec)
	if db, ok := exe.(core.DB); ok {
		return core.RunInTx(ctx, db, fn)
	}
	return fn(exe)
}

// trapNoRowsErr maps psql "no rows" err to notFoundErr
func trapNoRowsErr(err error, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// uuids keeps the valid identifiers of ids; postgres rejects the whole query on a malformed uuid.
func uuids(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}
