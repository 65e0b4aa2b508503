package spatial

import "github.com/thawney/SpatialHaptics/layout"

// MethodInfo holds method data for listings and help output.
type MethodInfo struct {
	Method  layout.Method
	Summary string
}

var methodSummaries = map[layout.Method]string{
	layout.TactileGrid:     "smoothed inverse-distance weighting over the nearest speakers, constant power",
	layout.VBAP:            "amplitude panning between the two speakers bracketing the source angle",
	layout.DistancePan:     "inverse-distance gains across the whole array, constant power",
	layout.NearestNeighbor: "full signal on the single closest speaker",
	layout.ITDILD:          "two-speaker panning by arrival-time and level differences",
}

// Describe returns a one-line summary of a method (defaults to the
// tactile_grid description for unknown values).
func Describe(m layout.Method) string {
	if s, ok := methodSummaries[m]; ok {
		return s
	}
	return methodSummaries[layout.TactileGrid]
}

// AllMethods returns info for every method, in presentation order.
func AllMethods() []MethodInfo {
	methods := layout.Methods()
	infos := make([]MethodInfo, 0, len(methods))
	for _, m := range methods {
		infos = append(infos, MethodInfo{Method: m, Summary: methodSummaries[m]})
	}
	return infos
}
