package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"runctl/internal/space"
)

// FeatureKind identifies the built-in feature setting variants. The set
// is closed: new kinds are added here and in the decode table, never
// discovered at runtime.
type FeatureKind string

const (
	// FeaturePlain is a named on/off feature with no extra payload.
	FeaturePlain FeatureKind = "plain"
	// FeatureSecurityProfile constrains the boot security profile.
	FeatureSecurityProfile FeatureKind = "security_profile"
	// FeatureGpu asks for GPU devices of an optional vendor family.
	FeatureGpu FeatureKind = "gpu"
	// FeatureNvme asks for NVMe disks attached to the node.
	FeatureNvme FeatureKind = "nvme"
)

// SecurityProfileType enumerates supported boot security profiles.
type SecurityProfileType string

const (
	SecurityProfileStandard       SecurityProfileType = "standard"
	SecurityProfileSecureBoot     SecurityProfileType = "secure_boot"
	SecurityProfileConfidentialVM SecurityProfileType = "cvm"
)

// FeatureSetting is one named feature constraint inside a NodeSpace.
// Kind selects which payload fields are meaningful; matching between
// requirement and capability is by Name.
type FeatureSetting struct {
	Kind FeatureKind `yaml:"kind"`
	Name string      `yaml:"name"`

	// SecurityProfiles is the allowed profile set for
	// FeatureSecurityProfile entries.
	SecurityProfiles *space.SetSpace[SecurityProfileType] `yaml:"-"`

	// DeviceCount applies to FeatureGpu and FeatureNvme.
	DeviceCount space.Count `yaml:"device_count,omitempty"`

	// Vendor applies to FeatureGpu.
	Vendor string `yaml:"vendor,omitempty"`
}

// PlainFeature builds an on/off feature setting.
func PlainFeature(name string) FeatureSetting {
	return FeatureSetting{Kind: FeaturePlain, Name: name}
}

// SecurityProfileFeature builds a security-profile setting allowing the
// given profiles.
func SecurityProfileFeature(profiles ...SecurityProfileType) FeatureSetting {
	return FeatureSetting{
		Kind:             FeatureSecurityProfile,
		Name:             string(FeatureSecurityProfile),
		SecurityProfiles: space.NewSetSpace(true, profiles...),
	}
}

// GpuFeature builds a GPU device setting.
func GpuFeature(count space.Count, vendor string) FeatureSetting {
	return FeatureSetting{
		Kind:        FeatureGpu,
		Name:        string(FeatureGpu),
		DeviceCount: count,
		Vendor:      vendor,
	}
}

// NvmeFeature builds an NVMe disk setting.
func NvmeFeature(count space.Count) FeatureSetting {
	return FeatureSetting{
		Kind:        FeatureNvme,
		Name:        string(FeatureNvme),
		DeviceCount: count,
	}
}

// normalize fills derived fields once at construction time.
func (f *FeatureSetting) normalize() error {
	if f.Kind == "" {
		f.Kind = FeaturePlain
	}
	switch f.Kind {
	case FeaturePlain, FeatureSecurityProfile, FeatureGpu, FeatureNvme:
	default:
		return fmt.Errorf("unknown feature kind %q", f.Kind)
	}
	if f.Name == "" {
		f.Name = string(f.Kind)
	}
	if f.Kind == FeaturePlain && f.Name == string(FeaturePlain) {
		return fmt.Errorf("plain feature requires a name")
	}
	return nil
}

// Check verifies that a capability-side setting can satisfy this
// requirement-side setting. Both sides must refer to the same feature
// name; the caller matches by name before calling.
func (f FeatureSetting) Check(cap FeatureSetting) space.ResultReason {
	var result space.ResultReason
	if f.Name != cap.Name {
		result.Add("feature name mismatch: requirement '%s', capability '%s'", f.Name, cap.Name)
		return result
	}

	switch f.Kind {
	case FeaturePlain:
		// Presence is the whole contract.
	case FeatureSecurityProfile:
		result.Merge(checkProfileSpace(f.SecurityProfiles, cap.SecurityProfiles), f.Name)
	case FeatureGpu:
		result.Merge(space.CheckCount(f.DeviceCount, cap.DeviceCount), f.Name+".device_count")
		if f.Vendor != "" && cap.Vendor != "" && f.Vendor != cap.Vendor {
			result.Add("%s: vendor '%s' is not offered, capability has '%s'", f.Name, f.Vendor, cap.Vendor)
		}
	case FeatureNvme:
		result.Merge(space.CheckCount(f.DeviceCount, cap.DeviceCount), f.Name+".device_count")
	}
	return result
}

// GenerateMin computes the minimal concrete setting that satisfies this
// requirement and is realizable by the capability.
func (f FeatureSetting) GenerateMin(cap FeatureSetting) (FeatureSetting, error) {
	min := f
	switch f.Kind {
	case FeaturePlain:
	case FeatureSecurityProfile:
		profile, err := minProfile(f.SecurityProfiles, cap.SecurityProfiles)
		if err != nil {
			return FeatureSetting{}, fmt.Errorf("feature '%s': %w", f.Name, err)
		}
		min.SecurityProfiles = space.NewSetSpace(true, profile)
	case FeatureGpu, FeatureNvme:
		count, err := space.GenerateMinCount(f.DeviceCount, cap.DeviceCount)
		if err != nil {
			return FeatureSetting{}, fmt.Errorf("feature '%s': %w", f.Name, err)
		}
		min.DeviceCount = space.ExactCount(count)
		if min.Vendor == "" {
			min.Vendor = cap.Vendor
		}
	}
	return min, nil
}

// checkProfileSpace applies set-inclusion semantics: the capability must
// offer at least one profile the requirement allows.
func checkProfileSpace(req, cap *space.SetSpace[SecurityProfileType]) space.ResultReason {
	var result space.ResultReason
	if req.Len() == 0 {
		return result
	}
	if cap.Len() == 0 {
		result.Add("capability offers no security profile, requirement needs %s", req)
		return result
	}
	for _, profile := range req.Items() {
		if cap.Has(profile) {
			return result
		}
	}
	result.Add("capability %s offers none of the required profiles %s", cap, req)
	return result
}

// minProfile picks the first requirement-side profile the capability
// offers, preserving the requirement's declared preference order.
func minProfile(req, cap *space.SetSpace[SecurityProfileType]) (SecurityProfileType, error) {
	if req.Len() == 0 {
		if cap.Len() == 0 {
			return SecurityProfileStandard, nil
		}
		return cap.Items()[0], nil
	}
	for _, profile := range req.Items() {
		if cap.Len() == 0 || cap.Has(profile) {
			return profile, nil
		}
	}
	return "", fmt.Errorf("%w: profiles %s vs %s", space.ErrUnsatisfiable, req, cap)
}

// featureYAML is the raw decode shape of one feature entry. A bare
// string is shorthand for a plain feature with that name.
type featureYAML struct {
	Kind        FeatureKind           `yaml:"kind"`
	Name        string                `yaml:"name"`
	Profiles    []SecurityProfileType `yaml:"profiles,omitempty"`
	DeviceCount space.Count           `yaml:"device_count,omitempty"`
	Vendor      string                `yaml:"vendor,omitempty"`
}

// UnmarshalYAML decodes either a bare feature name or a mapping with an
// explicit kind and payload.
func (f *FeatureSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return fmt.Errorf("invalid feature entry: %w", err)
		}
		*f = FeatureSetting{Kind: FeaturePlain, Name: name}
		return f.normalize()
	}

	var raw featureYAML
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("invalid feature entry: %w", err)
	}
	*f = FeatureSetting{
		Kind:        raw.Kind,
		Name:        raw.Name,
		DeviceCount: raw.DeviceCount,
		Vendor:      raw.Vendor,
	}
	if len(raw.Profiles) > 0 {
		if f.Kind == "" {
			f.Kind = FeatureSecurityProfile
		}
		f.SecurityProfiles = space.NewSetSpace(true, raw.Profiles...)
	}
	return f.normalize()
}
