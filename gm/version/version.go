// Package version defines the GameMaker version vector and the "at least"
// predicate used to gate format variations across the supported releases.
package version

import "fmt"

// Branch identifies where a version sits relative to the 2022 LTS split.
// It only participates in ordering when the numeric components are equal.
type Branch uint8

const (
	PreLTS Branch = iota
	LTS
	PostLTS
)

func (b Branch) String() string {
	switch b {
	case PreLTS:
		return "pre-LTS"
	case LTS:
		return "LTS"
	case PostLTS:
		return "post-LTS"
	}
	return fmt.Sprintf("illegal branch (%d)", uint8(b))
}

// A Version is the four-component GameMaker version plus the LTS branch.
// The zero value is the stub version used before GEN8 is decoded.
type Version struct {
	Major, Minor, Release, Build uint32
	Branch                       Branch
}

func New(major, minor, release, build uint32) Version {
	return Version{Major: major, Minor: minor, Release: release, Build: build, Branch: PostLTS}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Release, v.Build)
}

// Req is a version requirement. Unset trailing components mean "any".
type Req struct {
	Major, Minor, Release, Build uint32
	Branch                       Branch
}

// V builds a requirement from up to four components. The branch is left at
// PreLTS so purely numeric requirements are branch-agnostic; use VB to
// require a branch.
func V(parts ...uint32) Req {
	var r Req
	if len(parts) > 0 {
		r.Major = parts[0]
	}
	if len(parts) > 1 {
		r.Minor = parts[1]
	}
	if len(parts) > 2 {
		r.Release = parts[2]
	}
	if len(parts) > 3 {
		r.Build = parts[3]
	}
	return r
}

// VB is V with an explicit branch requirement.
func VB(branch Branch, parts ...uint32) Req {
	r := V(parts...)
	r.Branch = branch
	return r
}

// AtLeast reports whether v satisfies req. Components compare
// lexicographically; the branch breaks ties only when all four numeric
// components are equal.
func (v Version) AtLeast(req Req) bool {
	if v.Major != req.Major {
		return v.Major > req.Major
	}
	if v.Minor != req.Minor {
		return v.Minor > req.Minor
	}
	if v.Release != req.Release {
		return v.Release > req.Release
	}
	if v.Build != req.Build {
		return v.Build > req.Build
	}
	return v.Branch >= req.Branch
}

// Raise bumps v to at least req, keeping the mutation monotone. It returns
// true if v changed. A raise copies all four numeric components from req,
// so lower-order ones can drop (2.3.6 raised to 2022.3 becomes 2022.3.0.0),
// but v never moves backward in AtLeast order.
func (v *Version) Raise(req Req) bool {
	if v.AtLeast(req) {
		return false
	}
	v.Major, v.Minor, v.Release, v.Build = req.Major, req.Minor, req.Release, req.Build
	if v.Branch < req.Branch {
		v.Branch = req.Branch
	}
	return true
}
