package sync

import (
	"context"

	"github.com/iudanet/chatkeeper/pkg/api"
)

// pullOutcome полный change-set одного pull-прохода
type pullOutcome struct {
	cursor    string
	records   []api.SyncRecord
	pages     int
	truncated bool
}

// pullAll пагинирует провайдера, пока удаленный change-set не будет
// получен целиком. Сбой любой страницы прерывает стадию немедленно:
// записи неудавшегося вызова не сохраняются, и вызывающий код никогда
// не видит частичных страниц.
//
// Жесткая граница безопасности: после MaxPullPages страниц стадия
// завершается с тем, что накоплено, вместо бесконечного ожидания
// некорректного провайдера, продолжающего сообщать hasMore.
func (e *Engine) pullAll(ctx context.Context, cursor string) (*pullOutcome, error) {
	out := &pullOutcome{cursor: cursor}

	for {
		if out.pages >= e.cfg.MaxPullPages {
			out.truncated = true
			e.logger.Warn("pull aborted at page safety bound",
				"pages", out.pages,
				"records", len(out.records))
			return out, nil
		}

		res, err := e.provider.Pull(ctx, out.cursor)
		if err != nil {
			return nil, AsError(err)
		}

		out.pages++
		out.records = append(out.records, res.Records...)
		out.cursor = res.Cursor

		if !res.HasMore {
			return out, nil
		}
	}
}
