package collab

// shape model for the drawing surface. Shapes are value types; document
// operations replace whole records rather than mutating in place.

type ShapeKind string

const (
	ShapeLine          ShapeKind = "Line"
	ShapeArrow         ShapeKind = "Arrow"
	ShapeRectangle     ShapeKind = "Rectangle"
	ShapeDoubleBox     ShapeKind = "DoubleBox"
	ShapeDiamond       ShapeKind = "Diamond"
	ShapeEllipse       ShapeKind = "Ellipse"
	ShapeFreehand      ShapeKind = "Freehand"
	ShapeText          ShapeKind = "Text"
	ShapeTriangle      ShapeKind = "Triangle"
	ShapeParallelogram ShapeKind = "Parallelogram"
	ShapeHexagon       ShapeKind = "Hexagon"
	ShapeTrapezoid     ShapeKind = "Trapezoid"
	ShapeRoundedRect   ShapeKind = "RoundedRect"
	ShapeCylinder      ShapeKind = "Cylinder"
	ShapeCloud         ShapeKind = "Cloud"
	ShapeStar          ShapeKind = "Star"
)

type LineStyle string

const (
	LineStraight     LineStyle = "Straight"
	LineOrthogonalHV LineStyle = "OrthogonalHV"
	LineOrthogonalVH LineStyle = "OrthogonalVH"
)

// 16 color terminal palette
type ShapeColor string

const (
	ColorWhite        ShapeColor = "White"
	ColorBlack        ShapeColor = "Black"
	ColorRed          ShapeColor = "Red"
	ColorGreen        ShapeColor = "Green"
	ColorYellow       ShapeColor = "Yellow"
	ColorBlue         ShapeColor = "Blue"
	ColorMagenta      ShapeColor = "Magenta"
	ColorCyan         ShapeColor = "Cyan"
	ColorGray         ShapeColor = "Gray"
	ColorDarkGray     ShapeColor = "DarkGray"
	ColorLightRed     ShapeColor = "LightRed"
	ColorLightGreen   ShapeColor = "LightGreen"
	ColorLightYellow  ShapeColor = "LightYellow"
	ColorLightBlue    ShapeColor = "LightBlue"
	ColorLightMagenta ShapeColor = "LightMagenta"
	ColorLightCyan    ShapeColor = "LightCyan"
)

var colorCycle = map[ShapeColor]ShapeColor{
	ColorWhite:        ColorRed,
	ColorRed:          ColorGreen,
	ColorGreen:        ColorYellow,
	ColorYellow:       ColorBlue,
	ColorBlue:         ColorMagenta,
	ColorMagenta:      ColorCyan,
	ColorCyan:         ColorLightRed,
	ColorLightRed:     ColorLightGreen,
	ColorLightGreen:   ColorLightYellow,
	ColorLightYellow:  ColorLightBlue,
	ColorLightBlue:    ColorLightMagenta,
	ColorLightMagenta: ColorLightCyan,
	ColorLightCyan:    ColorGray,
	ColorGray:         ColorDarkGray,
	ColorDarkGray:     ColorBlack,
	ColorBlack:        ColorWhite,
}

func (self ShapeColor) Next() ShapeColor {
	if next, ok := colorCycle[self]; ok {
		return next
	}
	return ColorWhite
}

var colorCss = map[ShapeColor]string{
	ColorWhite:        "white",
	ColorBlack:        "black",
	ColorRed:          "#cd0000",
	ColorGreen:        "#00cd00",
	ColorYellow:       "#cdcd00",
	ColorBlue:         "#0000cd",
	ColorMagenta:      "#cd00cd",
	ColorCyan:         "#00cdcd",
	ColorGray:         "#808080",
	ColorDarkGray:     "#555555",
	ColorLightRed:     "#ff0000",
	ColorLightGreen:   "#00ff00",
	ColorLightYellow:  "#ffff00",
	ColorLightBlue:    "#0000ff",
	ColorLightMagenta: "#ff00ff",
	ColorLightCyan:    "#00ffff",
}

func (self ShapeColor) Css() string {
	if css, ok := colorCss[self]; ok {
		return css
	}
	return "white"
}

// Shape holds the union of all kind fields. Which fields are meaningful
// depends on Kind:
//
//	Line, Arrow                      Start, End, Style, StartConnection, EndConnection
//	Rectangle, DoubleBox,
//	Parallelogram, Trapezoid,
//	RoundedRect, Cylinder, Cloud     Start, End
//	Diamond                          Center, HalfWidth, HalfHeight
//	Ellipse, Hexagon                 Center, RadiusX, RadiusY
//	Star                             Center, OuterRadius, InnerRadius
//	Triangle                         P1, P2, P3
//	Freehand                         Points, Char
//	Text                             Pos, Content
//
// Label and Color apply to all kinds except Text, whose content is its
// label.
type Shape struct {
	Kind ShapeKind `msgpack:"kind"`

	Start Position `msgpack:"start,omitempty"`
	End   Position `msgpack:"end,omitempty"`

	Center     Position `msgpack:"center,omitempty"`
	HalfWidth  int32    `msgpack:"half_width,omitempty"`
	HalfHeight int32    `msgpack:"half_height,omitempty"`
	RadiusX    int32    `msgpack:"radius_x,omitempty"`
	RadiusY    int32    `msgpack:"radius_y,omitempty"`

	OuterRadius int32 `msgpack:"outer_radius,omitempty"`
	InnerRadius int32 `msgpack:"inner_radius,omitempty"`

	P1 Position `msgpack:"p1,omitempty"`
	P2 Position `msgpack:"p2,omitempty"`
	P3 Position `msgpack:"p3,omitempty"`

	Points []Position `msgpack:"points,omitempty"`
	Char   rune       `msgpack:"char,omitempty"`

	Pos     Position `msgpack:"pos,omitempty"`
	Content string   `msgpack:"content,omitempty"`

	Style LineStyle `msgpack:"style,omitempty"`
	// connector endpoints snapped to another shape. zero means free.
	StartConnection Id `msgpack:"start_conn,omitempty"`
	EndConnection   Id `msgpack:"end_conn,omitempty"`

	Label string     `msgpack:"label,omitempty"`
	Color ShapeColor `msgpack:"color,omitempty"`
}

func (self *Shape) IsConnector() bool {
	return self.Kind == ShapeLine || self.Kind == ShapeArrow
}

func (self *Shape) SupportsLabel() bool {
	return self.Kind != ShapeText
}

// DisplayLabel is the label shown on the canvas. For text shapes the
// content is the label.
func (self *Shape) DisplayLabel() string {
	if self.Kind == ShapeText {
		return ""
	}
	return self.Label
}

// Translated returns a moved copy. Connections are dropped since the
// endpoints no longer touch the snapped shapes.
func (self *Shape) Translated(dx int32, dy int32) Shape {
	next := *self
	next.Start = self.Start.Translate(dx, dy)
	next.End = self.End.Translate(dx, dy)
	next.Center = self.Center.Translate(dx, dy)
	next.P1 = self.P1.Translate(dx, dy)
	next.P2 = self.P2.Translate(dx, dy)
	next.P3 = self.P3.Translate(dx, dy)
	next.Pos = self.Pos.Translate(dx, dy)
	if 0 < len(self.Points) {
		points := make([]Position, len(self.Points))
		for i, p := range self.Points {
			points[i] = p.Translate(dx, dy)
		}
		next.Points = points
	}
	next.StartConnection = Id{}
	next.EndConnection = Id{}
	return next
}

func minInt32(a int32, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a int32, b int32) int32 {
	if b < a {
		return a
	}
	return b
}

type Bounds struct {
	MinX int32
	MinY int32
	MaxX int32
	MaxY int32
}

func (self Bounds) Contains(pos Position) bool {
	return self.MinX <= pos.X && pos.X <= self.MaxX &&
		self.MinY <= pos.Y && pos.Y <= self.MaxY
}

func (self *Shape) Bounds() Bounds {
	switch self.Kind {
	case ShapeLine, ShapeArrow, ShapeRectangle, ShapeDoubleBox,
		ShapeParallelogram, ShapeTrapezoid, ShapeRoundedRect,
		ShapeCylinder, ShapeCloud:
		return Bounds{
			MinX: minInt32(self.Start.X, self.End.X),
			MinY: minInt32(self.Start.Y, self.End.Y),
			MaxX: maxInt32(self.Start.X, self.End.X),
			MaxY: maxInt32(self.Start.Y, self.End.Y),
		}
	case ShapeDiamond:
		return Bounds{
			MinX: self.Center.X - self.HalfWidth,
			MinY: self.Center.Y - self.HalfHeight,
			MaxX: self.Center.X + self.HalfWidth,
			MaxY: self.Center.Y + self.HalfHeight,
		}
	case ShapeEllipse, ShapeHexagon:
		return Bounds{
			MinX: self.Center.X - self.RadiusX,
			MinY: self.Center.Y - self.RadiusY,
			MaxX: self.Center.X + self.RadiusX,
			MaxY: self.Center.Y + self.RadiusY,
		}
	case ShapeStar:
		return Bounds{
			MinX: self.Center.X - self.OuterRadius,
			MinY: self.Center.Y - self.OuterRadius,
			MaxX: self.Center.X + self.OuterRadius,
			MaxY: self.Center.Y + self.OuterRadius,
		}
	case ShapeTriangle:
		return Bounds{
			MinX: minInt32(self.P1.X, minInt32(self.P2.X, self.P3.X)),
			MinY: minInt32(self.P1.Y, minInt32(self.P2.Y, self.P3.Y)),
			MaxX: maxInt32(self.P1.X, maxInt32(self.P2.X, self.P3.X)),
			MaxY: maxInt32(self.P1.Y, maxInt32(self.P2.Y, self.P3.Y)),
		}
	case ShapeFreehand:
		if len(self.Points) == 0 {
			return Bounds{}
		}
		bounds := Bounds{
			MinX: self.Points[0].X,
			MinY: self.Points[0].Y,
			MaxX: self.Points[0].X,
			MaxY: self.Points[0].Y,
		}
		for _, p := range self.Points[1:] {
			bounds.MinX = minInt32(bounds.MinX, p.X)
			bounds.MinY = minInt32(bounds.MinY, p.Y)
			bounds.MaxX = maxInt32(bounds.MaxX, p.X)
			bounds.MaxY = maxInt32(bounds.MaxY, p.Y)
		}
		return bounds
	case ShapeText:
		return Bounds{
			MinX: self.Pos.X,
			MinY: self.Pos.Y,
			MaxX: self.Pos.X + int32(len(self.Content)) - 1,
			MaxY: self.Pos.Y,
		}
	}
	return Bounds{}
}

// SnapPoints are the edge positions connector endpoints attach to.
func (self *Shape) SnapPoints() []Position {
	switch self.Kind {
	case ShapeLine, ShapeArrow:
		return []Position{self.Start, self.End}
	case ShapeRectangle, ShapeDoubleBox, ShapeParallelogram, ShapeTrapezoid,
		ShapeRoundedRect, ShapeCylinder, ShapeCloud:
		minX := minInt32(self.Start.X, self.End.X)
		maxX := maxInt32(self.Start.X, self.End.X)
		minY := minInt32(self.Start.Y, self.End.Y)
		maxY := maxInt32(self.Start.Y, self.End.Y)
		midX := (minX + maxX) / 2
		midY := (minY + maxY) / 2
		return []Position{
			NewPosition(minX, minY),
			NewPosition(maxX, minY),
			NewPosition(minX, maxY),
			NewPosition(maxX, maxY),
			NewPosition(midX, minY),
			NewPosition(midX, maxY),
			NewPosition(minX, midY),
			NewPosition(maxX, midY),
		}
	case ShapeDiamond:
		return []Position{
			NewPosition(self.Center.X, self.Center.Y-self.HalfHeight),
			NewPosition(self.Center.X, self.Center.Y+self.HalfHeight),
			NewPosition(self.Center.X-self.HalfWidth, self.Center.Y),
			NewPosition(self.Center.X+self.HalfWidth, self.Center.Y),
		}
	case ShapeEllipse, ShapeHexagon:
		return []Position{
			NewPosition(self.Center.X, self.Center.Y-self.RadiusY),
			NewPosition(self.Center.X, self.Center.Y+self.RadiusY),
			NewPosition(self.Center.X-self.RadiusX, self.Center.Y),
			NewPosition(self.Center.X+self.RadiusX, self.Center.Y),
		}
	case ShapeStar:
		return []Position{
			NewPosition(self.Center.X, self.Center.Y-self.OuterRadius),
			NewPosition(self.Center.X, self.Center.Y+self.OuterRadius),
			NewPosition(self.Center.X-self.OuterRadius, self.Center.Y),
			NewPosition(self.Center.X+self.OuterRadius, self.Center.Y),
		}
	case ShapeTriangle:
		return []Position{self.P1, self.P2, self.P3}
	case ShapeText:
		endX := self.Pos.X + int32(len(self.Content)) - 1
		return []Position{self.Pos, NewPosition(endX, self.Pos.Y)}
	case ShapeFreehand:
		snaps := []Position{}
		if 0 < len(self.Points) {
			snaps = append(snaps, self.Points[0])
			if 1 < len(self.Points) {
				snaps = append(snaps, self.Points[len(self.Points)-1])
			}
		}
		return snaps
	}
	return nil
}

type ResizeHandle int

const (
	HandleTopLeft ResizeHandle = iota
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
	HandleStart
	HandleEnd
)

type ResizeHandleInfo struct {
	Handle ResizeHandle
	Pos    Position
}

func (self *Shape) ResizeHandles() []ResizeHandleInfo {
	switch self.Kind {
	case ShapeLine, ShapeArrow:
		return []ResizeHandleInfo{
			{Handle: HandleStart, Pos: self.Start},
			{Handle: HandleEnd, Pos: self.End},
		}
	case ShapeRectangle, ShapeDoubleBox, ShapeParallelogram, ShapeTrapezoid,
		ShapeRoundedRect, ShapeCylinder, ShapeCloud:
		minX := minInt32(self.Start.X, self.End.X)
		maxX := maxInt32(self.Start.X, self.End.X)
		minY := minInt32(self.Start.Y, self.End.Y)
		maxY := maxInt32(self.Start.Y, self.End.Y)
		return []ResizeHandleInfo{
			{Handle: HandleTopLeft, Pos: NewPosition(minX, minY)},
			{Handle: HandleTopRight, Pos: NewPosition(maxX, minY)},
			{Handle: HandleBottomLeft, Pos: NewPosition(minX, maxY)},
			{Handle: HandleBottomRight, Pos: NewPosition(maxX, maxY)},
		}
	case ShapeDiamond:
		return []ResizeHandleInfo{
			{Handle: HandleTopLeft, Pos: NewPosition(self.Center.X, self.Center.Y-self.HalfHeight)},
			{Handle: HandleTopRight, Pos: NewPosition(self.Center.X+self.HalfWidth, self.Center.Y)},
			{Handle: HandleBottomLeft, Pos: NewPosition(self.Center.X-self.HalfWidth, self.Center.Y)},
			{Handle: HandleBottomRight, Pos: NewPosition(self.Center.X, self.Center.Y+self.HalfHeight)},
		}
	case ShapeEllipse, ShapeHexagon:
		return []ResizeHandleInfo{
			{Handle: HandleTopLeft, Pos: NewPosition(self.Center.X-self.RadiusX, self.Center.Y-self.RadiusY)},
			{Handle: HandleTopRight, Pos: NewPosition(self.Center.X+self.RadiusX, self.Center.Y-self.RadiusY)},
			{Handle: HandleBottomLeft, Pos: NewPosition(self.Center.X-self.RadiusX, self.Center.Y+self.RadiusY)},
			{Handle: HandleBottomRight, Pos: NewPosition(self.Center.X+self.RadiusX, self.Center.Y+self.RadiusY)},
		}
	case ShapeStar:
		return []ResizeHandleInfo{
			{Handle: HandleTopLeft, Pos: NewPosition(self.Center.X-self.OuterRadius, self.Center.Y-self.OuterRadius)},
			{Handle: HandleTopRight, Pos: NewPosition(self.Center.X+self.OuterRadius, self.Center.Y-self.OuterRadius)},
			{Handle: HandleBottomLeft, Pos: NewPosition(self.Center.X-self.OuterRadius, self.Center.Y+self.OuterRadius)},
			{Handle: HandleBottomRight, Pos: NewPosition(self.Center.X+self.OuterRadius, self.Center.Y+self.OuterRadius)},
		}
	case ShapeTriangle:
		return []ResizeHandleInfo{
			{Handle: HandleTopLeft, Pos: self.P1},
			{Handle: HandleTopRight, Pos: self.P2},
			{Handle: HandleBottomRight, Pos: self.P3},
		}
	}
	return nil
}

func absInt32(a int32) int32 {
	if a < 0 {
		return -a
	}
	return a
}

// Resized returns a copy with the given handle dragged to newPos. Handles
// that the kind does not have return the shape unchanged.
func (self *Shape) Resized(handle ResizeHandle, newPos Position) Shape {
	next := *self
	switch self.Kind {
	case ShapeLine, ShapeArrow:
		switch handle {
		case HandleStart:
			next.Start = newPos
		case HandleEnd:
			next.End = newPos
		}
	case ShapeRectangle, ShapeDoubleBox, ShapeParallelogram, ShapeTrapezoid,
		ShapeRoundedRect, ShapeCylinder, ShapeCloud:
		next.Start, next.End = resizeCorners(self.Start, self.End, handle, newPos)
	case ShapeDiamond:
		switch handle {
		case HandleTopLeft:
			next.HalfHeight = maxInt32(absInt32(self.Center.Y-newPos.Y), 1)
		case HandleTopRight:
			next.HalfWidth = maxInt32(absInt32(newPos.X-self.Center.X), 1)
		case HandleBottomLeft:
			next.HalfWidth = maxInt32(absInt32(self.Center.X-newPos.X), 1)
		case HandleBottomRight:
			next.HalfHeight = maxInt32(absInt32(newPos.Y-self.Center.Y), 1)
		}
	case ShapeEllipse, ShapeHexagon:
		switch handle {
		case HandleTopLeft, HandleTopRight, HandleBottomLeft, HandleBottomRight:
			next.RadiusX = maxInt32(absInt32(newPos.X-self.Center.X), 1)
			next.RadiusY = maxInt32(absInt32(newPos.Y-self.Center.Y), 1)
		}
	case ShapeStar:
		switch handle {
		case HandleTopLeft, HandleTopRight, HandleBottomLeft, HandleBottomRight:
			outer := maxInt32(
				maxInt32(absInt32(newPos.X-self.Center.X), absInt32(newPos.Y-self.Center.Y)),
				2,
			)
			next.OuterRadius = outer
			next.InnerRadius = maxInt32(minInt32(self.InnerRadius, outer-1), 1)
		}
	case ShapeTriangle:
		switch handle {
		case HandleTopLeft:
			next.P1 = newPos
		case HandleTopRight:
			next.P2 = newPos
		case HandleBottomRight:
			next.P3 = newPos
		}
	}
	return next
}

// corner drag for start/end shapes, preserving which corner each of
// start and end represents
func resizeCorners(start Position, end Position, handle ResizeHandle, newPos Position) (Position, Position) {
	startLeft := start.X <= end.X
	startTop := start.Y <= end.Y

	switch handle {
	case HandleTopLeft:
		if startLeft && startTop {
			return newPos, end
		} else if !startLeft && startTop {
			return NewPosition(start.X, newPos.Y), NewPosition(newPos.X, end.Y)
		} else if startLeft && !startTop {
			return NewPosition(newPos.X, start.Y), NewPosition(end.X, newPos.Y)
		}
		return start, newPos
	case HandleTopRight:
		if startLeft && startTop {
			return NewPosition(start.X, newPos.Y), NewPosition(newPos.X, end.Y)
		} else if !startLeft && startTop {
			return newPos, end
		} else if startLeft && !startTop {
			return start, newPos
		}
		return NewPosition(newPos.X, start.Y), NewPosition(end.X, newPos.Y)
	case HandleBottomLeft:
		if startLeft && startTop {
			return NewPosition(newPos.X, start.Y), NewPosition(end.X, newPos.Y)
		} else if !startLeft && startTop {
			return start, newPos
		} else if startLeft && !startTop {
			return newPos, end
		}
		return NewPosition(start.X, newPos.Y), NewPosition(newPos.X, end.Y)
	case HandleBottomRight:
		if startLeft && startTop {
			return start, newPos
		} else if !startLeft && startTop {
			return NewPosition(newPos.X, start.Y), NewPosition(end.X, newPos.Y)
		} else if startLeft && !startTop {
			return NewPosition(start.X, newPos.Y), NewPosition(newPos.X, end.Y)
		}
		return newPos, end
	}
	return start, end
}

// FindCorrespondingSnap maps a snap position on an old shape geometry to
// the equivalent position on the resized geometry: nearest old snap by
// manhattan distance, then the same index on the new shape.
func FindCorrespondingSnap(oldShape *Shape, newShape *Shape, snapPos Position) (Position, bool) {
	oldSnaps := oldShape.SnapPoints()
	newSnaps := newShape.SnapPoints()
	if len(oldSnaps) == 0 || len(oldSnaps) != len(newSnaps) {
		return Position{}, false
	}
	bestIndex := 0
	bestDist := snapPos.ManhattanDistance(oldSnaps[0])
	for i, p := range oldSnaps[1:] {
		if dist := snapPos.ManhattanDistance(p); dist < bestDist {
			bestDist = dist
			bestIndex = i + 1
		}
	}
	return newSnaps[bestIndex], true
}
