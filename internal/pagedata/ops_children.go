package pagedata

// childZIndex keeps children above their container's background.
const childZIndex = 2

// AddChild appends child to the children of parentID, which must be a
// section, popup, modal or group.
func (o *Ops) AddChild(doc *Document, parentID string, child *Element) *Document {
	if child == nil {
		return miss(doc, "addChild", "parent", parentID)
	}
	if p := doc.Find(parentID); p == nil || !p.Type.IsContainer() {
		return miss(doc, "addChild", "parent", parentID)
	}
	out := doc.Clone()
	parent := out.Find(parentID)

	c := child.Clone()
	if c.Position == nil {
		c.Position = map[Breakpoint]Position{}
	}
	for _, bp := range Breakpoints {
		if _, ok := c.Position[bp]; !ok {
			c.Position[bp] = Position{Z: defaultZ}
		}
	}
	c = InitializeResponsiveData(c)
	c.ensureMaps()
	for bp, s := range c.ResponsiveStyles {
		if s == nil {
			s = Styles{}
		}
		s["zIndex"] = float64(childZIndex)
		c.ResponsiveStyles[bp] = s
	}
	o.ids(out).claimTree(c)

	parent.Children = append(parent.Children, c)
	return o.touch(out)
}

// DeleteChild removes a direct child of parentID. Siblings keep their
// positions.
func (o *Ops) DeleteChild(doc *Document, parentID, childID string) *Document {
	out := doc.Clone()
	parent := out.Find(parentID)
	if parent == nil {
		return miss(doc, "deleteChild", "parent", parentID, "child", childID)
	}
	for i, c := range parent.Children {
		if c.ID != childID {
			continue
		}
		parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
		out.VisiblePopups = pruneIDs(out.VisiblePopups, c)
		return o.touch(out)
	}
	return miss(doc, "deleteChild", "parent", parentID, "child", childID)
}

// MoveChild detaches childID from sourceParentID (the top level when empty)
// and attaches it under targetParentID (the top level when empty). When pos
// is given it replaces the position at mode only; other breakpoints are
// left for the caller to resync.
func (o *Ops) MoveChild(doc *Document, sourceParentID, childID, targetParentID string, mode Breakpoint, pos *Position) *Document {
	out := doc.Clone()

	var target *Element
	if targetParentID != "" {
		if target = out.Find(targetParentID); target == nil || !target.Type.IsContainer() {
			return miss(doc, "moveChild", "target", targetParentID)
		}
	}

	siblings := &out.Elements
	if sourceParentID != "" {
		source := out.Find(sourceParentID)
		if source == nil {
			return miss(doc, "moveChild", "source", sourceParentID)
		}
		siblings = &source.Children
	}
	idx := -1
	for i, c := range *siblings {
		if c.ID == childID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return miss(doc, "moveChild", "source", sourceParentID, "child", childID)
	}
	moving := (*siblings)[idx]
	if target != nil && moving.Find(target.ID) != nil {
		return miss(doc, "moveChild", "child", childID, "target", targetParentID)
	}

	*siblings = append((*siblings)[:idx], (*siblings)[idx+1:]...)
	if pos != nil {
		moving.ensureMaps()
		p := *pos
		p.Z = zOr(p.Z, zOr(moving.PositionAt(mode).Z, defaultZ))
		if moving.Type == TypeSection {
			p.X = 0
		}
		moving.Position[mode] = p
	}
	if target != nil {
		target.Children = append(target.Children, moving)
	} else {
		out.Elements = append(out.Elements, moving)
	}
	return o.touch(out)
}

// ReorderChildren moves the child at dragIndex to dropIndex.
func (o *Ops) ReorderChildren(doc *Document, parentID string, dragIndex, dropIndex int) *Document {
	parent := doc.Find(parentID)
	if parent == nil {
		return miss(doc, "reorderChildren", "parent", parentID)
	}
	n := len(parent.Children)
	if dragIndex < 0 || dragIndex >= n || dropIndex < 0 || dropIndex >= n {
		return miss(doc, "reorderChildren", "parent", parentID, "drag", dragIndex, "drop", dropIndex)
	}
	if dragIndex == dropIndex {
		return doc
	}
	out := doc.Clone()
	children := out.Find(parentID).Children
	moved := children[dragIndex]
	children = append(children[:dragIndex], children[dragIndex+1:]...)
	children = append(children[:dropIndex], append([]*Element{moved}, children[dropIndex:]...)...)
	out.Find(parentID).Children = children
	return o.touch(out)
}
