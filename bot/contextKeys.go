package bot

import "context"

type key string

const (
	RequestID key = "RequestID"
)

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestID).(string)
	return id
}
