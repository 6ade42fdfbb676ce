package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
	"github.com/vkhitrin/cosmicding-sub000/pkg/provider"
)

// Import adds items to an account one at a time. The batch gets a fresh
// operation id; cancelling the session's operation drops the items not yet
// started. A provider failure on any item stops the batch.
func (e *Engine) Import(ctx context.Context, accountID int64, items []*bookmark.Bookmark) (ImportReport, error) {
	batch := e.now().UnixNano()
	e.session.setOperation(batch)
	defer e.session.clearOperation(batch)

	rep := ImportReport{BatchID: batch, Total: len(items)}

	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := e.account(ctx, accountID)
	if err != nil {
		return rep, err
	}

	p, err := e.providers.For(acc)
	if err != nil {
		return rep, err
	}

	log := slog.With("batch", batch, "account", acc.ID)
	log.Info("import started", "items", len(items))

	for i, item := range items {
		if e.session.OperationID() != batch || ctx.Err() != nil {
			log.Info("import cancelled", "at", i)
			rep.Cancelled = true
			rep.Skipped = len(items) - i

			break
		}

		b := item.Clone()
		b.ID = 0
		b.AccountID = acc.ID
		b.IsOwner = true

		e.progress(Progress{Current: i, Total: len(items), Label: b.URL, Cancellable: true})

		if err := e.importOne(ctx, acc, p, b); err != nil {
			log.Error("import item failed", "index", i, "url", b.URL, "error", err)
			e.notify(Notice{Level: LevelError, AccountID: acc.ID, Text: "importing " + b.URL, Err: err})

			rep.Cancelled = true
			rep.Failed = b.URL
			rep.Skipped = len(items) - i - 1

			if db.IsStorageError(err) {
				e.finishImport(ctx, rep)
				return rep, err
			}

			break
		}

		rep.Imported++
		e.progress(Progress{Current: i + 1, Total: len(items), Label: b.URL, Cancellable: true})
	}

	e.finishImport(ctx, rep)

	if rep.Cancelled && rep.Failed == "" {
		return rep, ErrImportCancelled
	}

	return rep, nil
}

func (e *Engine) importOne(ctx context.Context, acc *account.Account, p provider.Provider, b *bookmark.Bookmark) error {
	if err := bookmark.Validate(b); err != nil {
		return err
	}

	res := p.PopulateBookmark(ctx, acc, b, true)
	if !res.Successful {
		return errors.Join(ErrProvider, res.Err)
	}

	_, err := e.persist(ctx, res.Payload)

	return err
}

func (e *Engine) finishImport(ctx context.Context, rep ImportReport) {
	lvl := LevelInfo
	if rep.Cancelled {
		lvl = LevelWarn
	}

	// a zero Progress clears the progress indicator
	e.progress(Progress{})
	e.notify(Notice{Level: lvl, Text: rep.String()})

	if err := e.reload(ctx); err != nil {
		slog.Error("reloading after import", "error", err)
	}
}
