package schema

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"runctl/internal/space"
)

// Validation errors shared across the schema package.
var (
	ErrInvalidNodeSpace = errors.New("invalid node space")
	ErrZeroMandatory    = errors.New("mandatory count resolved to zero")
)

// DiskType enumerates the disk flavors a requirement can ask for.
type DiskType string

const (
	DiskStandardHDD DiskType = "standard_hdd"
	DiskStandardSSD DiskType = "standard_ssd"
	DiskPremiumSSD  DiskType = "premium_ssd"
	DiskEphemeral   DiskType = "ephemeral"
)

// DiskSpec is the nested disk requirement of a NodeSpace.
type DiskSpec struct {
	Type   *space.SetSpace[DiskType] `yaml:"-"`
	Count  space.Count               `yaml:"count,omitempty"`
	Iops   space.Count               `yaml:"iops,omitempty"`
	SizeGB space.Count               `yaml:"size_gb,omitempty"`
}

// diskYAML is the raw decode shape of a disk spec; the type entry may
// be a single scalar or a list of acceptable types.
type diskYAML struct {
	Type   []DiskType  `yaml:"type,omitempty"`
	Count  space.Count `yaml:"count,omitempty"`
	Iops   space.Count `yaml:"iops,omitempty"`
	SizeGB space.Count `yaml:"size_gb,omitempty"`
}

// UnmarshalYAML decodes a disk spec, normalizing the type entry into an
// allow set.
func (d *DiskSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw diskYAML
	if err := node.Decode(&raw); err != nil {
		// Retry with a scalar disk type.
		var single struct {
			Type   DiskType    `yaml:"type"`
			Count  space.Count `yaml:"count,omitempty"`
			Iops   space.Count `yaml:"iops,omitempty"`
			SizeGB space.Count `yaml:"size_gb,omitempty"`
		}
		if err2 := node.Decode(&single); err2 != nil {
			return fmt.Errorf("invalid disk spec: %w", err)
		}
		raw = diskYAML{Count: single.Count, Iops: single.Iops, SizeGB: single.SizeGB}
		if single.Type != "" {
			raw.Type = []DiskType{single.Type}
		}
	}
	*d = DiskSpec{Count: raw.Count, Iops: raw.Iops, SizeGB: raw.SizeGB}
	if len(raw.Type) > 0 {
		d.Type = space.NewSetSpace(true, raw.Type...)
	}
	return nil
}

// Check verifies a capability disk offer against this disk requirement.
func (d *DiskSpec) Check(cap *DiskSpec) space.ResultReason {
	var result space.ResultReason
	if d == nil {
		return result
	}
	if cap == nil {
		result.Add("requirement has a disk, capability offers none")
		return result
	}
	result.Merge(checkEnumSpace(d.Type, cap.Type), "disk.type")
	result.Merge(space.CheckCount(d.Count, cap.Count), "disk.count")
	result.Merge(space.CheckCount(d.Iops, cap.Iops), "disk.iops")
	result.Merge(space.CheckCount(d.SizeGB, cap.SizeGB), "disk.size_gb")
	return result
}

// GenerateMin computes the smallest disk spec satisfying this
// requirement and realizable by the capability.
func (d *DiskSpec) GenerateMin(cap *DiskSpec) (*DiskSpec, error) {
	if d == nil && cap == nil {
		return nil, nil
	}
	if d == nil {
		d = &DiskSpec{}
	}
	if cap == nil {
		cap = &DiskSpec{}
	}

	min := &DiskSpec{}
	switch {
	case d.Type.Len() > 0:
		// First requirement-side type the capability offers.
		for _, dt := range d.Type.Items() {
			if cap.Type.Len() == 0 || cap.Type.Has(dt) {
				min.Type = space.NewSetSpace(true, dt)
				break
			}
		}
		if min.Type == nil {
			return nil, fmt.Errorf("disk.type: %w", space.ErrUnsatisfiable)
		}
	case cap.Type.Len() > 0:
		min.Type = space.NewSetSpace(true, cap.Type.Items()[0])
	}

	var err error
	if min.Count, err = minExact(d.Count, cap.Count, "disk.count"); err != nil {
		return nil, err
	}
	if min.Iops, err = minExact(d.Iops, cap.Iops, "disk.iops"); err != nil {
		return nil, err
	}
	if min.SizeGB, err = minExact(d.SizeGB, cap.SizeGB, "disk.size_gb"); err != nil {
		return nil, err
	}
	return min, nil
}

// checkEnumSpace applies any-of semantics for enum value spaces: the
// capability must offer at least one value the requirement allows. A
// capability pinned to a single value is a one-item set.
func checkEnumSpace[T comparable](req, cap *space.SetSpace[T]) space.ResultReason {
	var result space.ResultReason
	if req.Len() == 0 {
		return result
	}
	if cap.Len() == 0 {
		result.Add("capability offers no value, requirement allows %s", req)
		return result
	}
	for _, v := range req.Items() {
		if cap.Has(v) {
			return result
		}
	}
	result.Add("capability %s offers none of the allowed values %s", cap, req)
	return result
}

func minExact(req, cap space.Count, field string) (space.Count, error) {
	if !req.IsSet() && !cap.IsSet() {
		return space.Count{}, nil
	}
	v, err := space.GenerateMinCount(req, cap)
	if err != nil {
		return space.Count{}, fmt.Errorf("%s: %w", field, err)
	}
	return space.ExactCount(v), nil
}

// NodeSpace is one node's resource and feature shape. The same type
// describes both sides of negotiation: a test case's requirement and a
// platform's offer. A NodeSpace is normalized at construction and
// immutable afterwards; GenerateMinCapability returns a new value.
type NodeSpace struct {
	Name      string      `yaml:"name,omitempty"`
	IsDefault bool        `yaml:"is_default,omitempty"`
	NodeCount space.Count `yaml:"node_count,omitempty"`
	CoreCount space.Count `yaml:"core_count,omitempty"`
	MemoryMB  space.Count `yaml:"memory_mb,omitempty"`
	NicCount  space.Count `yaml:"nic_count,omitempty"`
	GpuCount  space.Count `yaml:"gpu_count,omitempty"`
	Disk      *DiskSpec   `yaml:"disk,omitempty"`

	// Features are inclusion requirements; ExcludedFeatures must not be
	// offered by a satisfying capability.
	Features         []FeatureSetting `yaml:"features,omitempty"`
	ExcludedFeatures []FeatureSetting `yaml:"excluded_features,omitempty"`
}

// DefaultNodeSpace returns the requirement used when a test case does
// not declare one: any single node with at least one core, 512 MB of
// memory and one NIC.
func DefaultNodeSpace() *NodeSpace {
	return &NodeSpace{
		NodeCount: space.MinCount(1),
		CoreCount: space.MinCount(1),
		MemoryMB:  space.MinCount(512),
		NicCount:  space.MinCount(1),
		GpuCount:  space.MinCount(0),
	}
}

// NewCapability returns a copy of the node space pinned to a single
// node, the shape an environment uses to offer itself. An absent
// gpu_count means the node offers no GPU.
func (n *NodeSpace) NewCapability() *NodeSpace {
	cap := n.Clone()
	cap.NodeCount = space.ExactCount(1)
	if !cap.GpuCount.IsSet() {
		cap.GpuCount = space.ExactCount(0)
	}
	return cap
}

// Clone returns a deep copy.
func (n *NodeSpace) Clone() *NodeSpace {
	if n == nil {
		return nil
	}
	out := *n
	if n.Disk != nil {
		disk := *n.Disk
		if n.Disk.Type != nil {
			disk.Type = space.NewSetSpace(true, n.Disk.Type.Items()...)
		}
		out.Disk = &disk
	}
	out.Features = append([]FeatureSetting(nil), n.Features...)
	out.ExcludedFeatures = append([]FeatureSetting(nil), n.ExcludedFeatures...)
	return &out
}

// Validate normalizes feature entries and rejects self-contradictory
// declarations before any scheduling starts.
func (n *NodeSpace) Validate() error {
	seen := map[string]struct{}{}
	for i := range n.Features {
		if err := n.Features[i].normalize(); err != nil {
			return fmt.Errorf("%w: features[%d]: %v", ErrInvalidNodeSpace, i, err)
		}
		seen[n.Features[i].Name] = struct{}{}
	}
	for i := range n.ExcludedFeatures {
		if err := n.ExcludedFeatures[i].normalize(); err != nil {
			return fmt.Errorf("%w: excluded_features[%d]: %v", ErrInvalidNodeSpace, i, err)
		}
		if _, ok := seen[n.ExcludedFeatures[i].Name]; ok {
			return fmt.Errorf("%w: feature '%s' is both required and excluded",
				ErrInvalidNodeSpace, n.ExcludedFeatures[i].Name)
		}
	}
	return nil
}

// findFeature returns the setting with the given name, matching the
// requirement side to the capability side.
func findFeature(name string, features []FeatureSetting) (FeatureSetting, bool) {
	for _, f := range features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureSetting{}, false
}

// Check verifies that a capability can satisfy this requirement. The
// returned ResultReason is satisfied when empty; otherwise it lists
// every mismatching field by name.
func (n *NodeSpace) Check(cap *NodeSpace) space.ResultReason {
	var result space.ResultReason
	if cap == nil {
		result.Add("capability must not be nil")
		return result
	}
	if !cap.NodeCount.IsSet() || !cap.CoreCount.IsSet() ||
		!cap.MemoryMB.IsSet() || !cap.NicCount.IsSet() {
		result.Add("capability node_count, core_count, memory_mb and nic_count must be set")
	}

	// Fixed-vs-fixed node counts compare directly; an environment sized
	// larger than asked is acceptable.
	reqNodes, reqExact := n.NodeCount.Exact()
	capNodes, capExact := cap.NodeCount.Exact()
	if reqExact && capExact {
		if reqNodes > capNodes {
			result.Add("node_count: capability %d is smaller than requirement %d", capNodes, reqNodes)
		}
	} else {
		result.Merge(space.CheckCount(n.NodeCount, cap.NodeCount), "node_count")
	}

	result.Merge(space.CheckCount(n.CoreCount, cap.CoreCount), "core_count")
	result.Merge(space.CheckCount(n.MemoryMB, cap.MemoryMB), "memory_mb")
	result.Merge(space.CheckCount(n.NicCount, cap.NicCount), "nic_count")
	result.Merge(space.CheckCount(n.GpuCount, cap.GpuCount), "gpu_count")
	if n.Disk != nil {
		result.Merge(n.Disk.Check(cap.Disk), "")
	}

	for _, feature := range n.Features {
		capFeature, ok := findFeature(feature.Name, cap.Features)
		if !ok {
			result.Add("no feature '%s' found in capability", feature.Name)
			continue
		}
		result.Merge(feature.Check(capFeature), "")
	}
	for _, excluded := range n.ExcludedFeatures {
		if _, ok := findFeature(excluded.Name, cap.Features); ok {
			result.Add("excluded feature '%s' found in capability", excluded.Name)
		}
	}
	return result
}

// GenerateMinCapability computes the smallest concrete NodeSpace that
// satisfies this requirement and is realizable by the capability. A
// zero result for node, core, memory or NIC counts is a programming
// error and fails fast; gpu_count defaults to zero when absent.
func (n *NodeSpace) GenerateMinCapability(cap *NodeSpace) (*NodeSpace, error) {
	if cap == nil {
		return nil, fmt.Errorf("%w: capability must not be nil", ErrInvalidNodeSpace)
	}
	min := n.Clone()
	min.Name = cap.Name

	// Fixed-vs-fixed: the capability's node count wins, environments may
	// be sized larger than asked.
	_, reqExact := n.NodeCount.Exact()
	capNodes, capExact := cap.NodeCount.Exact()
	if reqExact && capExact {
		min.NodeCount = space.ExactCount(capNodes)
	} else {
		v, err := space.GenerateMinCount(n.NodeCount, cap.NodeCount)
		if err != nil {
			return nil, fmt.Errorf("node_count: %w", err)
		}
		min.NodeCount = space.ExactCount(v)
	}

	type mandatory struct {
		name string
		req  space.Count
		cap  space.Count
		dst  *space.Count
	}
	fields := []mandatory{
		{"core_count", n.CoreCount, cap.CoreCount, &min.CoreCount},
		{"memory_mb", n.MemoryMB, cap.MemoryMB, &min.MemoryMB},
		{"nic_count", n.NicCount, cap.NicCount, &min.NicCount},
	}
	for _, f := range fields {
		v, err := space.GenerateMinCount(f.req, f.cap)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		if v == 0 {
			return nil, fmt.Errorf("%w: %s", ErrZeroMandatory, f.name)
		}
		*f.dst = space.ExactCount(v)
	}
	if nodes, _ := min.NodeCount.Exact(); nodes == 0 {
		return nil, fmt.Errorf("%w: node_count", ErrZeroMandatory)
	}

	if n.GpuCount.IsSet() || cap.GpuCount.IsSet() {
		v, err := space.GenerateMinCount(n.GpuCount, cap.GpuCount)
		if err != nil {
			return nil, fmt.Errorf("gpu_count: %w", err)
		}
		min.GpuCount = space.ExactCount(v)
	} else {
		min.GpuCount = space.ExactCount(0)
	}

	if n.Disk != nil || cap.Disk != nil {
		disk, err := n.Disk.GenerateMin(cap.Disk)
		if err != nil {
			return nil, err
		}
		min.Disk = disk
	}

	// The capability drives the generated feature list: unrequested
	// capability features carry through, requested ones are minimized
	// against their capability-side entry.
	min.Features = nil
	for _, capFeature := range cap.Features {
		reqFeature, ok := findFeature(capFeature.Name, n.Features)
		if !ok {
			reqFeature = capFeature
		}
		minFeature, err := reqFeature.GenerateMin(capFeature)
		if err != nil {
			return nil, err
		}
		min.Features = append(min.Features, minFeature)
	}
	min.ExcludedFeatures = append([]FeatureSetting(nil), n.ExcludedFeatures...)
	return min, nil
}

// ExpandByNodeCount splits a multi-node requirement into single-node
// requirements so later matching stays one to one.
func (n *NodeSpace) ExpandByNodeCount() ([]*NodeSpace, error) {
	count, err := space.GenerateMinCount(n.NodeCount, n.NodeCount)
	if err != nil {
		return nil, fmt.Errorf("node_count: %w", err)
	}
	if count == 0 {
		count = 1
	}
	expanded := make([]*NodeSpace, 0, count)
	for i := 0; i < count; i++ {
		c := n.Clone()
		c.NodeCount = space.ExactCount(1)
		expanded = append(expanded, c)
	}
	return expanded, nil
}

// HasFeature reports whether the requirement names a feature.
func (n *NodeSpace) HasFeature(name string) bool {
	_, ok := findFeature(name, n.Features)
	return ok
}

func (n *NodeSpace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "nodes:%s cores:%s mem:%s nics:%s gpus:%s",
		n.NodeCount, n.CoreCount, n.MemoryMB, n.NicCount, n.GpuCount)
	if len(n.Features) > 0 {
		names := make([]string, 0, len(n.Features))
		for _, f := range n.Features {
			names = append(names, f.Name)
		}
		fmt.Fprintf(&b, " features:%s", strings.Join(names, ","))
	}
	return b.String()
}
