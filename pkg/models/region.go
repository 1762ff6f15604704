package models

// RegionLevel is the administrative depth of a region node.
type RegionLevel string

const (
	RegionLevelProvince     RegionLevel = "province"     // 시도
	RegionLevelDistrict     RegionLevel = "district"     // 시군구
	RegionLevelNeighborhood RegionLevel = "neighborhood" // 읍면동, the finest granularity items carry
)

// Region is one node of the administrative region tree. ParentID is nil for
// province roots.
type Region struct {
	ID       int64       `json:"id"`
	ParentID *int64      `json:"parent_id,omitempty"`
	Level    RegionLevel `json:"level"`
	Name     string      `json:"name"`
}
