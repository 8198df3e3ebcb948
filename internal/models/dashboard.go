// internal/models/dashboard.go

package models

import "time"

type FavoriteApp struct {
	AppName string `json:"app_name"`
}

type Owner struct {
	Email string `json:"email"`
}

type App struct {
	Name       string    `json:"name"`
	Owner      Owner     `json:"owner"`
	ReleasedAt time.Time `json:"released_at"`
}

type Formation struct {
	Type     string `json:"type"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type Pipeline struct {
	Name string `json:"name"`
}

type PipelineCoupling struct {
	Pipeline Pipeline `json:"pipeline"`
}

type Organization struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	Read bool `json:"read"`
}

// Series is a metrics payload: each key maps to hourly values.
type Series struct {
	Data map[string][]float64 `json:"data"`
}

// Empty reports whether the series carries no keys.
func (s *Series) Empty() bool {
	return s == nil || len(s.Data) == 0
}

// AppMetrics holds the last 24h of metrics for one app. Any field may be nil
// when the metrics API did not answer.
type AppMetrics struct {
	DynoErrors    []*Series
	RouterLatency *Series
	RouterErrors  *Series
	RouterStatus  *Series
}

// DashboardApp groups everything fetched for one favorite app.
type DashboardApp struct {
	App       App
	Formation []Formation
	Pipeline  *PipelineCoupling
	Metrics   AppMetrics
}
