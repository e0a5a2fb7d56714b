// Package source 外部数据源: 路网 (OSM 文件、Overpass、数据库) 与规避区域 (GeoJSON、SQL 表)
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"zone-router/model"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy 数据源加载的重试策略
type RetryPolicy struct {
	Attempts        int           // 最多尝试次数
	Timeout         time.Duration // 单次尝试超时, 0 表示不限制
	InitialInterval time.Duration // 首次重试前的等待时间, 之后指数增长
}

// DefaultRetryPolicy 3 次尝试, 每次 30 秒超时
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Timeout: 30 * time.Second, InitialInterval: 500 * time.Millisecond}
}

// MalformedError 数据源返回了格式错误的数据, 重试没有意义
type MalformedError struct {
	Source string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed data: %v", e.Source, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func malformed(source string, format string, args ...any) error {
	return &MalformedError{Source: source, Err: fmt.Errorf(format, args...)}
}

// isPermanent 数据校验类错误不重试
func isPermanent(err error) bool {
	var malformedErr *MalformedError
	var zoneErr *model.ZoneDataError
	var profileErr *model.ProfileConfigError
	return errors.As(err, &malformedErr) || errors.As(err, &zoneErr) || errors.As(err, &profileErr)
}

// Retry 带指数退避的有限次重试
// 重试耗尽返回包装了 model.ErrDataSourceUnavailable 的错误; 数据格式错误立即原样返回
func Retry[T any](ctx context.Context, logger *slog.Logger, name string, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var permanent error
	op := func() (T, error) {
		attemptCtx := ctx
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}
		v, err := fn(attemptCtx)
		if err != nil && isPermanent(err) {
			permanent = err
			return zero, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "data source load failed, retrying",
				slog.String("source", name), slog.Any("error", err), slog.Duration("next", next))
		}),
	)
	if permanent != nil {
		return zero, permanent
	}
	if err != nil {
		return zero, fmt.Errorf("%s: %w: %v", name, model.ErrDataSourceUnavailable, err)
	}
	return v, nil
}
