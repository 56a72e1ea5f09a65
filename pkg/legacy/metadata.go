package legacy

import "strconv"

// Property keys shared with ROIs written by other tools. They are persisted
// with the ROI and must not change.
const (
	PropStableID     = "net.imagej.omero.legacy:ID"
	PropZ            = "net.imagej.omero.legacy:ZPos"
	PropT            = "net.imagej.omero.legacy:TPos"
	PropC            = "net.imagej.omero.legacy:CPos"
	PropCollectionID = "net.imagej.omero.legacy.ROIDataID"
)

// NoCollection is the collection ID of a ROI that belongs to no collection.
const NoCollection int64 = -1

// Metadata is the typed view of the cross-representation properties.
type Metadata struct {
	StableID     string
	OriginalZ    *int
	OriginalT    *int
	OriginalC    *int
	CollectionID *int64
}

// Metadata parses the property bag. Malformed values are treated as absent.
func (r *Roi) Metadata() Metadata {
	var md Metadata
	md.StableID, _ = r.Property(PropStableID)
	md.OriginalZ = r.intProp(PropZ)
	md.OriginalT = r.intProp(PropT)
	md.OriginalC = r.intProp(PropC)
	if id, ok := r.CollectionID(); ok {
		md.CollectionID = &id
	}
	return md
}

// SetMetadata writes every non-empty field of md into the property bag.
func (r *Roi) SetMetadata(md Metadata) {
	if md.StableID != "" {
		r.SetStableID(md.StableID)
	}
	if md.OriginalZ != nil {
		r.SetProperty(PropZ, strconv.Itoa(*md.OriginalZ))
	}
	if md.OriginalT != nil {
		r.SetProperty(PropT, strconv.Itoa(*md.OriginalT))
	}
	if md.OriginalC != nil {
		r.SetProperty(PropC, strconv.Itoa(*md.OriginalC))
	}
	if md.CollectionID != nil {
		r.SetCollectionID(*md.CollectionID)
	}
}

func (r *Roi) StableID() (string, bool) {
	id, ok := r.Property(PropStableID)
	return id, ok && id != ""
}

func (r *Roi) SetStableID(id string) {
	r.SetProperty(PropStableID, id)
}

// OriginalPosition returns the 0-based server position stashed when the ROI
// was created from a shape record. Negative values mean the server had no
// position on that axis. ok is false when nothing was stashed.
func (r *Roi) OriginalPosition() (z, t, c int, ok bool) {
	zp, tp, cp := r.intProp(PropZ), r.intProp(PropT), r.intProp(PropC)
	if zp == nil || tp == nil || cp == nil {
		return 0, 0, 0, false
	}
	return *zp, *tp, *cp, true
}

func (r *Roi) SetOriginalPosition(z, t, c int) {
	r.SetProperty(PropZ, strconv.Itoa(z))
	r.SetProperty(PropT, strconv.Itoa(t))
	r.SetProperty(PropC, strconv.Itoa(c))
}

func (r *Roi) CollectionID() (int64, bool) {
	v, ok := r.Property(PropCollectionID)
	if !ok {
		return NoCollection, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return NoCollection, false
	}
	return id, true
}

func (r *Roi) SetCollectionID(id int64) {
	r.SetProperty(PropCollectionID, strconv.FormatInt(id, 10))
}

func (r *Roi) intProp(key string) *int {
	v, ok := r.Property(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
