package tag

// Well-known tag names read by the scene layer.
const (
	Context          = "aux.context" // groupings this entity defines (string or array)
	ContextX         = "aux.context.x"
	ContextY         = "aux.context.y"
	ContextZ         = "aux.context.z"
	ContextGridScale = "aux.context.grid.scale"

	Shape        = "aux.shape" // cube|box|sphere|sprite|mesh|iframe
	ShapeSubtype = "aux.shape.subtype"
	ShapeAddress = "aux.shape.address" // mesh asset or embedded content URL

	Color = "aux.color"

	Scale  = "aux.scale" // uniform multiplier
	ScaleX = "aux.scale.x"
	ScaleY = "aux.scale.y"
	ScaleZ = "aux.scale.z" // height

	RotationX = "aux.rotation.x"
	RotationY = "aux.rotation.y"
	RotationZ = "aux.rotation.z"

	Label      = "aux.label"
	LabelColor = "aux.label.color"
	LabelSize  = "aux.label.size"

	ProgressBar           = "aux.progressBar"
	ProgressBarColor      = "aux.progressBar.color"
	ProgressBarBackground = "aux.progressBar.backgroundColor"

	LineTo    = "aux.line.to"
	LineColor = "aux.line.color"

	Stackable = "aux.stackable"
	Channel   = "aux.channel" // sub-simulation reference
)

// GroupX and friends name the per-grouping placement tags of a member.
func GroupX(group string) string     { return group + ".x" }
func GroupY(group string) string     { return group + ".y" }
func GroupZ(group string) string     { return group + ".z" }
func GroupIndex(group string) string { return group + ".index" }
