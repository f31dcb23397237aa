package geo

import (
	"fmt"
	"time"
)

// Sample 带时间戳的轨迹点
type Sample struct {
	Point
	At time.Time
}

// Stats 轨迹统计，仅用于展示，不回写存储
type Stats struct {
	DistanceMeters  float64 `json:"distance_meters"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	AverageSpeedMps float64 `json:"average_speed_mps"`
	Points          int     `json:"points"`
}

// Aggregate 对按时间排序的轨迹求累计距离、耗时和平均速度
// 少于两个点或耗时为零时速度为 0
func Aggregate(samples []Sample) Stats {
	stats := Stats{Points: len(samples)}
	if len(samples) < 2 {
		return stats
	}

	for i := 1; i < len(samples); i++ {
		stats.DistanceMeters += Haversine(samples[i-1].Point, samples[i].Point)
	}

	elapsed := samples[len(samples)-1].At.Sub(samples[0].At).Seconds()
	if elapsed > 0 {
		stats.ElapsedSeconds = elapsed
		stats.AverageSpeedMps = stats.DistanceMeters / elapsed
	}
	return stats
}

// AverageSpeedKmh 平均速度，km/h
func (s Stats) AverageSpeedKmh() float64 {
	return s.AverageSpeedMps * 3.6
}

// Elapsed 以 time.Duration 表示的耗时
func (s Stats) Elapsed() time.Duration {
	return time.Duration(s.ElapsedSeconds * float64(time.Second))
}

// FormatDistance 1 km 以下显示米，以上显示一位小数的公里
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}
