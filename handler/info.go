package handler

import (
	"net/http"
	"time"
	"zone-router/model"
	"zone-router/planner"
	"zone-router/utils"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Profiles 列出可用的配置
func (s *Server) Profiles(c *gin.Context) {
	snap := s.planner.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": snap.Profiles.Summaries()})
}

// Zones 以 GeoJSON FeatureCollection 返回已加载的规避区域 (地图叠加层)
func (s *Server) Zones(c *gin.Context) {
	snap := s.planner.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, z := range snap.Zones.Zones() {
		f := geojson.NewFeature(orb.Polygon{utils.ToOrbRing(z.Ring)})
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["name"] = z.Name
		f.Properties["level"] = z.Severity
		f.Properties["high"] = z.Severity >= model.HighSeverity
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// Stats 当前快照的规模
func (s *Server) Stats(c *gin.Context) {
	snap := s.planner.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地图数据未加载"})
		return
	}
	c.JSON(http.StatusOK, s.stats(snap))
}

func (s *Server) stats(snap *planner.Snapshot) gin.H {
	return gin.H{
		"nodes":     len(snap.Graph.Nodes),
		"segments":  len(snap.Graph.Segments),
		"zones":     snap.Zones.Len(),
		"profiles":  snap.Profiles.Names(),
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
	}
}
