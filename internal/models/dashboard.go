package models

// Tier is the activity tier of a contributor within one calendar month
type Tier string

const (
	TierFullTime Tier = "FULL_TIME"
	TierPartTime Tier = "PART_TIME"
	TierOneTime  Tier = "ONE_TIME"
)

// ActivityStatus is a contributor's month-over-month state
type ActivityStatus string

const (
	StatusNew         ActivityStatus = "NEW"
	StatusActive      ActivityStatus = "ACTIVE"
	StatusChurned     ActivityStatus = "CHURNED"
	StatusReactivated ActivityStatus = "REACTIVATED"
)

// KPISnapshot compares the current calendar month with the previous one.
// Growth fields are percentages (10.5 means 10.5%).
type KPISnapshot struct {
	FullTimeDevs            int     `json:"fullTimeDevs"`
	FullTimeDevsGrowth      float64 `json:"fullTimeDevsGrowth"`
	MonthlyActiveDevs       int     `json:"monthlyActiveDevs"`
	MonthlyActiveDevsGrowth float64 `json:"monthlyActiveDevsGrowth"`
	TotalCommits            int     `json:"totalCommits"`
	TotalCommitsGrowth      float64 `json:"totalCommitsGrowth"`
	TotalRepos              int     `json:"totalRepos"`
	TotalReposGrowth        float64 `json:"totalReposGrowth"`
}

// MonthlyCount is one point of a plain monthly series
type MonthlyCount struct {
	Month Month `json:"month"`
	Count int   `json:"count"`
}

// TierBreakdown counts distinct contributors per tier in a month
type TierBreakdown struct {
	Month    Month `json:"month"`
	FullTime int   `json:"fullTime"`
	PartTime int   `json:"partTime"`
	OneTime  int   `json:"oneTime"`
}

// CommitsByTier counts distinct commits per author tier in a month
type CommitsByTier struct {
	Month    Month `json:"month"`
	Total    int   `json:"total"`
	FullTime int   `json:"fullTime"`
	PartTime int   `json:"partTime"`
	OneTime  int   `json:"oneTime"`
}

// DevActivityPoint counts contributors per activity status in a month.
// Active is ACTIVE only; TotalActive is NEW + ACTIVE + REACTIVATED.
type DevActivityPoint struct {
	Month       Month `json:"month"`
	New         int   `json:"new"`
	Active      int   `json:"active"`
	Churned     int   `json:"churned"`
	Reactivated int   `json:"reactivated"`
	TotalActive int   `json:"totalActive"`
}

// CadencePoint summarizes distinct commit days per active contributor in a month
type CadencePoint struct {
	Month        Month   `json:"month"`
	Contributors int     `json:"contributors"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	P90          float64 `json:"p90"`
}

// Overview bundles every dashboard chart for one scope
type Overview struct {
	KPIs              KPISnapshot        `json:"kpis"`
	DeveloperActivity []TierBreakdown    `json:"developerActivity"`
	CommitsByDevType  []CommitsByTier    `json:"commitsByDevType"`
	MonthlyCommits    []MonthlyCount     `json:"monthlyCommits"`
	MonthlyPRsMerged  []MonthlyCount     `json:"monthlyPRsMerged"`
	DevActivity       []DevActivityPoint `json:"devActivity"`
	Cadence           []CadencePoint     `json:"cadence"`
}
