package handler

import (
	"errors"
	"net/http"
	"strconv"
	"zone-router/model"
	"zone-router/planner"
	"zone-router/profile"

	"github.com/gin-gonic/gin"
)

// RouteRequest 路径规划请求
type RouteRequest struct {
	Origin      *model.Coordinate `json:"origin" binding:"required"`
	Destination *model.Coordinate `json:"destination" binding:"required"`
	Profiles    []string          `json:"profiles"` // 为空时返回空结果
}

// RouteResponse 路径规划响应, routes 以配置名称为键
type RouteResponse struct {
	RequestID string                 `json:"request_id"`
	Routes    map[string]RouteResult `json:"routes"`
}

// RouteResult 单个配置的结果: 成功时带路线概要, 失败时带 error 和 reason
type RouteResult struct {
	Profile string `json:"profile"`
	*RouteSummary
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// RouteSummary 路线几何与统计
type RouteSummary struct {
	Geometry        [][2]float64 `json:"geometry"` // [lng, lat], 与 GeoJSON 一致
	DistanceMeters  float64      `json:"distanceMeters"`
	TimeMs          int64        `json:"timeMs"`
	DeltaVsBaseline *Delta       `json:"deltaVsBaseline,omitempty"`
}

// Delta 与同一请求中 baseline 路线的差值 (正数表示更长/更慢)
type Delta struct {
	Seconds float64 `json:"seconds"`
	Meters  float64 `json:"meters"`
}

// PlanRoute 路径规划接口, 每个配置独立计算
func (s *Server) PlanRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if !req.Origin.Valid() || !req.Destination.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "起点或终点坐标超出范围"})
		return
	}

	results, err := s.planner.Plan(c.Request.Context(), model.PlanningRequest{
		Origin:      *req.Origin,
		Destination: *req.Destination,
		Profiles:    req.Profiles,
	})
	if errors.Is(err, planner.ErrNotReady) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, RouteResponse{
		RequestID: c.GetString("request_id"),
		Routes:    buildResults(results),
	})
}

// buildResults 转换规划结果; 差值由两条独立计算的路线相减得到
func buildResults(results map[string]planner.Result) map[string]RouteResult {
	var baseline *model.Route
	if r, ok := results[profile.Baseline]; ok && r.Err == nil {
		baseline = r.Route
	}

	out := make(map[string]RouteResult, len(results))
	for name, r := range results {
		if r.Err != nil {
			out[name] = RouteResult{Profile: name, Error: r.Err.Error(), Reason: model.ErrorKind(r.Err)}
			continue
		}
		summary := &RouteSummary{
			Geometry:       make([][2]float64, len(r.Route.Geometry)),
			DistanceMeters: r.Route.DistanceMeters,
			TimeMs:         r.Route.TimeMs,
		}
		for i, p := range r.Route.Geometry {
			summary.Geometry[i] = [2]float64{p.Lng, p.Lat}
		}
		if baseline != nil && name != profile.Baseline {
			summary.DeltaVsBaseline = &Delta{
				Seconds: float64(r.Route.TimeMs-baseline.TimeMs) / 1000,
				Meters:  r.Route.DistanceMeters - baseline.DistanceMeters,
			}
		}
		out[name] = RouteResult{Profile: name, RouteSummary: summary}
	}
	return out
}

// NearestNode 查找离给定坐标最近的路网节点
func (s *Server) NearestNode(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	coord := model.Coordinate{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !coord.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat/lng 参数错误"})
		return
	}

	snap := s.planner.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}
	node, dist := snap.Graph.FindNearestNode(coord)
	if node == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "节点不存在"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         node.ID,
		"lat":        node.Lat,
		"lng":        node.Lng,
		"distance_m": dist,
	})
}
