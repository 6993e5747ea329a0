package results

// Result artifact naming convention, fixed per angle under
// analysis_result/{ownerId}/{analysisId}/{angle}/.
const (
	resultsCSVFile         = "results.csv"
	frameByFrameCSVFile    = "frame_by_frame.csv"
	visualizationVideoFile = "visualization.mp4"
)

// visualizationSpec names one PNG visualization category and the parts it
// is split into. Most categories have a left/right pair; knee flexion adds
// a min/max split and leg swing a front/back split. Single-image
// categories use the "image" part.
type visualizationSpec struct {
	name  string
	parts []string
}

var (
	partsSingle    = []string{"image"}
	partsLeftRight = []string{"left", "right"}
)

var visualizationSpecs = []visualizationSpec{
	{"foot_strike", partsLeftRight},
	{"ankle_dorsiflexion", partsLeftRight},
	{"knee_flexion", []string{"left_min", "left_max", "right_min", "right_max"}},
	{"hip_extension", partsLeftRight},
	{"pelvic_drop", partsLeftRight},
	{"trunk_lean", partsSingle},
	{"arm_carriage", partsLeftRight},
	{"vertical_oscillation", partsSingle},
	{"overstride", partsLeftRight},
	{"cadence", partsSingle},
	{"leg_swing", []string{"left_front", "left_back", "right_front", "right_back"}},
	{"ground_contact", partsLeftRight},
	{"stride_symmetry", partsSingle},
}

// visualizationFilename maps a category part to its PNG filename.
func visualizationFilename(spec visualizationSpec, part string) string {
	if part == "image" {
		return spec.name + ".png"
	}
	return spec.name + "_" + part + ".png"
}

// AngleArtifacts is the fixed-shape bundle of presigned result artifacts
// for one camera angle. Any field may be null when the underlying object
// is absent or its presign failed.
type AngleArtifacts struct {
	ResultsCSV         *string                       `json:"resultsCsv"`
	FrameByFrameCSV    *string                       `json:"frameByFrameCsv"`
	VisualizationVideo *string                       `json:"visualizationVideo"`
	Thumbnail          *string                       `json:"thumbnail"`
	Visualizations     map[string]map[string]*string `json:"visualizations"`
}

// ArtifactFiles groups the per-angle bundles. Angles that were never
// uploaded are null.
type ArtifactFiles struct {
	Normal      *AngleArtifacts `json:"normal"`
	LeftToRight *AngleArtifacts `json:"leftToRight"`
	RightToLeft *AngleArtifacts `json:"rightToLeft"`
	RearView    *AngleArtifacts `json:"rearView"`
}
