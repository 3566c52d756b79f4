package collab

// mapping between Shape values and store records. A shape record is a map
// object keyed under the shapes collection by the shape id's string form.
// Connector references are stored as id strings so they survive the codec
// round trip unchanged.

func putInt32(store *Store, obj OpId, key string, v int32) {
	store.MapPut(obj, key, IntValue(int64(v)))
}

func getInt32(store *Store, obj OpId, key string) int32 {
	if value, ok := store.MapGet(obj, key); ok && value.Kind == ValueInt {
		return int32(value.Int)
	}
	return 0
}

func getString(store *Store, obj OpId, key string) string {
	if value, ok := store.MapGet(obj, key); ok && value.Kind == ValueString {
		return value.Str
	}
	return ""
}

func getConnection(store *Store, obj OpId, key string) Id {
	if s := getString(store, obj, key); s != "" {
		if id, err := ParseId(s); err == nil {
			return id
		}
	}
	return Id{}
}

// writeShape fills a shape record. The caller creates the record object.
func writeShape(store *Store, obj OpId, shape *Shape) {
	store.MapPut(obj, "kind", StringValue(string(shape.Kind)))

	color := shape.Color
	if color == "" {
		color = ColorWhite
	}
	store.MapPut(obj, "color", StringValue(string(color)))

	switch shape.Kind {
	case ShapeLine, ShapeArrow:
		putInt32(store, obj, "start_x", shape.Start.X)
		putInt32(store, obj, "start_y", shape.Start.Y)
		putInt32(store, obj, "end_x", shape.End.X)
		putInt32(store, obj, "end_y", shape.End.Y)
		style := shape.Style
		if style == "" {
			style = LineStraight
		}
		store.MapPut(obj, "style", StringValue(string(style)))
		if !shape.StartConnection.IsZero() {
			store.MapPut(obj, "start_conn", StringValue(shape.StartConnection.String()))
		}
		if !shape.EndConnection.IsZero() {
			store.MapPut(obj, "end_conn", StringValue(shape.EndConnection.String()))
		}
	case ShapeRectangle, ShapeDoubleBox, ShapeParallelogram, ShapeTrapezoid,
		ShapeRoundedRect, ShapeCylinder, ShapeCloud:
		putInt32(store, obj, "start_x", shape.Start.X)
		putInt32(store, obj, "start_y", shape.Start.Y)
		putInt32(store, obj, "end_x", shape.End.X)
		putInt32(store, obj, "end_y", shape.End.Y)
	case ShapeDiamond:
		putInt32(store, obj, "center_x", shape.Center.X)
		putInt32(store, obj, "center_y", shape.Center.Y)
		putInt32(store, obj, "half_width", shape.HalfWidth)
		putInt32(store, obj, "half_height", shape.HalfHeight)
	case ShapeEllipse, ShapeHexagon:
		putInt32(store, obj, "center_x", shape.Center.X)
		putInt32(store, obj, "center_y", shape.Center.Y)
		putInt32(store, obj, "radius_x", shape.RadiusX)
		putInt32(store, obj, "radius_y", shape.RadiusY)
	case ShapeStar:
		putInt32(store, obj, "center_x", shape.Center.X)
		putInt32(store, obj, "center_y", shape.Center.Y)
		putInt32(store, obj, "outer_radius", shape.OuterRadius)
		putInt32(store, obj, "inner_radius", shape.InnerRadius)
	case ShapeTriangle:
		putInt32(store, obj, "p1_x", shape.P1.X)
		putInt32(store, obj, "p1_y", shape.P1.Y)
		putInt32(store, obj, "p2_x", shape.P2.X)
		putInt32(store, obj, "p2_y", shape.P2.Y)
		putInt32(store, obj, "p3_x", shape.P3.X)
		putInt32(store, obj, "p3_y", shape.P3.Y)
	case ShapeFreehand:
		ch := shape.Char
		if ch == 0 {
			ch = '*'
		}
		store.MapPut(obj, "char", StringValue(string(ch)))
		pointsObj := store.MapPutObject(obj, "points", ObjectList)
		for i, p := range shape.Points {
			pointObj := store.ListInsertObject(pointsObj, i, ObjectMap)
			putInt32(store, pointObj, "x", p.X)
			putInt32(store, pointObj, "y", p.Y)
		}
	case ShapeText:
		putInt32(store, obj, "pos_x", shape.Pos.X)
		putInt32(store, obj, "pos_y", shape.Pos.Y)
		store.MapPut(obj, "content", StringValue(shape.Content))
	}

	if shape.Kind != ShapeText && shape.Label != "" {
		store.MapPut(obj, "label", StringValue(shape.Label))
	}
}

// readShape reconstructs a Shape from its record. Returns false for a
// record with a missing or unknown kind.
func readShape(store *Store, obj OpId) (Shape, bool) {
	kind := ShapeKind(getString(store, obj, "kind"))
	shape := Shape{
		Kind: kind,
	}

	color := ShapeColor(getString(store, obj, "color"))
	if color == "" {
		color = ColorWhite
	}
	shape.Color = color

	switch kind {
	case ShapeLine, ShapeArrow:
		shape.Start = NewPosition(getInt32(store, obj, "start_x"), getInt32(store, obj, "start_y"))
		shape.End = NewPosition(getInt32(store, obj, "end_x"), getInt32(store, obj, "end_y"))
		style := LineStyle(getString(store, obj, "style"))
		if style == "" {
			style = LineStraight
		}
		shape.Style = style
		shape.StartConnection = getConnection(store, obj, "start_conn")
		shape.EndConnection = getConnection(store, obj, "end_conn")
	case ShapeRectangle, ShapeDoubleBox, ShapeParallelogram, ShapeTrapezoid,
		ShapeRoundedRect, ShapeCylinder, ShapeCloud:
		shape.Start = NewPosition(getInt32(store, obj, "start_x"), getInt32(store, obj, "start_y"))
		shape.End = NewPosition(getInt32(store, obj, "end_x"), getInt32(store, obj, "end_y"))
	case ShapeDiamond:
		shape.Center = NewPosition(getInt32(store, obj, "center_x"), getInt32(store, obj, "center_y"))
		shape.HalfWidth = getInt32(store, obj, "half_width")
		shape.HalfHeight = getInt32(store, obj, "half_height")
	case ShapeEllipse, ShapeHexagon:
		shape.Center = NewPosition(getInt32(store, obj, "center_x"), getInt32(store, obj, "center_y"))
		shape.RadiusX = getInt32(store, obj, "radius_x")
		shape.RadiusY = getInt32(store, obj, "radius_y")
	case ShapeStar:
		shape.Center = NewPosition(getInt32(store, obj, "center_x"), getInt32(store, obj, "center_y"))
		shape.OuterRadius = getInt32(store, obj, "outer_radius")
		shape.InnerRadius = getInt32(store, obj, "inner_radius")
	case ShapeTriangle:
		shape.P1 = NewPosition(getInt32(store, obj, "p1_x"), getInt32(store, obj, "p1_y"))
		shape.P2 = NewPosition(getInt32(store, obj, "p2_x"), getInt32(store, obj, "p2_y"))
		shape.P3 = NewPosition(getInt32(store, obj, "p3_x"), getInt32(store, obj, "p3_y"))
	case ShapeFreehand:
		ch := '*'
		if s := getString(store, obj, "char"); s != "" {
			ch = []rune(s)[0]
		}
		shape.Char = ch
		if value, ok := store.MapGet(obj, "points"); ok && value.Kind == ValueObject {
			for _, pointValue := range store.ListValues(value.Object) {
				if pointValue.Kind != ValueObject {
					continue
				}
				shape.Points = append(shape.Points, NewPosition(
					getInt32(store, pointValue.Object, "x"),
					getInt32(store, pointValue.Object, "y"),
				))
			}
		}
	case ShapeText:
		shape.Pos = NewPosition(getInt32(store, obj, "pos_x"), getInt32(store, obj, "pos_y"))
		shape.Content = getString(store, obj, "content")
	default:
		return Shape{}, false
	}

	if kind != ShapeText {
		shape.Label = getString(store, obj, "label")
	}
	return shape, true
}
