package model

import (
	"errors"
	"fmt"
)

// 单次请求内、单个配置范围的错误
var (
	ErrNoSnapTarget          = errors.New("no road network node within snap radius")
	ErrNoRouteFound          = errors.New("destination unreachable from origin")
	ErrTimeout               = errors.New("route computation exceeded its time budget")
	ErrUnknownProfile        = errors.New("unknown cost profile")
	ErrDataSourceUnavailable = errors.New("data source unavailable")
)

// ZoneDataError 区域多边形数据非法, 加载时致命
type ZoneDataError struct {
	ZoneID string
	Reason string
}

func (e *ZoneDataError) Error() string {
	return fmt.Sprintf("zone %q: %s", e.ZoneID, e.Reason)
}

// ProfileConfigError 配置规则引用了未知谓词或区域, 加载时致命
type ProfileConfigError struct {
	Profile string
	Rule    string
	Reason  string
}

func (e *ProfileConfigError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("profile %q: %s", e.Profile, e.Reason)
	}
	return fmt.Sprintf("profile %q rule %q: %s", e.Profile, e.Rule, e.Reason)
}

// InvalidMultiplierError 计算中出现非正数的系数, 对该配置的请求致命
type InvalidMultiplierError struct {
	Profile string
	Target  string // speed / priority / distance_influence
	Rule    string
	Value   float64
}

func (e *InvalidMultiplierError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("profile %q: %s multiplier %v must be a finite positive number", e.Profile, e.Target, e.Value)
	}
	return fmt.Sprintf("profile %q: %s multiplier %v from rule %q must be a finite positive number", e.Profile, e.Target, e.Value, e.Rule)
}

// ErrorKind 将错误映射为稳定的原因代码, 用于 API 响应和指标标签
func ErrorKind(err error) string {
	var zoneErr *ZoneDataError
	var profileErr *ProfileConfigError
	var multErr *InvalidMultiplierError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &zoneErr):
		return "zone_data"
	case errors.As(err, &profileErr):
		return "profile_config"
	case errors.As(err, &multErr):
		return "invalid_multiplier"
	case errors.Is(err, ErrNoSnapTarget):
		return "no_snap_target"
	case errors.Is(err, ErrNoRouteFound):
		return "no_route_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnknownProfile):
		return "unknown_profile"
	case errors.Is(err, ErrDataSourceUnavailable):
		return "data_source_unavailable"
	default:
		return "internal"
	}
}
