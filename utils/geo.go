package utils

import (
	"math"
	"zone-router/model"

	"github.com/paulmach/orb"
)

// EarthRadius WGS84 参考椭球长半轴 (米)
const EarthRadius = 6378137.0

// DegreesToRadians 角度转弧度
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// HaversineDistance Haversine 公式 (直接计算两点间球面距离)
// 用于补全路段长度和吸附时的距离判断
func HaversineDistance(p1, p2 model.Coordinate) float64 {
	lat1 := DegreesToRadians(p1.Lat)
	lon1 := DegreesToRadians(p1.Lng)
	lat2 := DegreesToRadians(p2.Lat)
	lon2 := DegreesToRadians(p2.Lng)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	// a = sin²(Δlat/2) + cos(lat1) * cos(lat2) * sin²(Δlon/2)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// c = 2 * atan2(√a, √(1-a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// PolylineLength 折线总长度 (米)
func PolylineLength(line []model.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += HaversineDistance(line[i-1], line[i])
	}
	return total
}

// ToOrbPoint 转换为 orb 点 (注意 orb 的顺序是 [lng, lat])
func ToOrbPoint(c model.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// FromOrbPoint orb 点转换为经纬度
func FromOrbPoint(p orb.Point) model.Coordinate {
	return model.Coordinate{Lat: p.Lat(), Lng: p.Lon()}
}

// ToOrbRing 经纬度环转换为 orb.Ring
func ToOrbRing(ring []model.Coordinate) orb.Ring {
	r := make(orb.Ring, len(ring))
	for i, c := range ring {
		r[i] = ToOrbPoint(c)
	}
	return r
}
