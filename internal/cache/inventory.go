package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ColumnsKey          = "columns:all"
	RenderKeyPrefix     = "article:%d:render:%d"
	BlacklistKeyPrefix  = "blacklist:%s"
	CommentChannelFmt   = "comments:article:%d"
	CommentChannelMatch = "comments:article:*"
)

const (
	ColumnsTTL = 10 * time.Minute
	RenderTTL  = 60 * time.Minute
)

// RenderKey identifies one rendered revision of an article body.
func RenderKey(articleID uint, updatedAt time.Time) string {
	return fmt.Sprintf(RenderKeyPrefix, articleID, updatedAt.UnixNano())
}

// BlacklistKey marks a revoked token id.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

// CommentChannel is the pub/sub channel carrying new comments for an article.
func CommentChannel(articleID uint) string {
	return fmt.Sprintf(CommentChannelFmt, articleID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateColumns(ctx context.Context) {
	Invalidate(ctx, ColumnsKey)
}
