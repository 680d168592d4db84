package geofence

// BackgroundPermissionSinceVersion is the first platform version with a
// separate background location grant.
const BackgroundPermissionSinceVersion = 29

// PermissionSet is a static PermissionChecker, typically loaded from config.
type PermissionSet struct {
	FineLocation       bool
	BackgroundLocation bool
	Version            int
}

// HasFineLocation reports whether precise location is granted.
func (p PermissionSet) HasFineLocation() bool { return p.FineLocation }

// HasBackgroundLocation reports whether background location is granted.
func (p PermissionSet) HasBackgroundLocation() bool { return p.BackgroundLocation }

// PlatformVersion reports the host platform version.
func (p PermissionSet) PlatformVersion() int { return p.Version }
