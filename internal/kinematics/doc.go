// Package kinematics holds the four-momentum type shared by the clustering
// engine and the derived collider quantities it needs: transverse momentum,
// pseudorapidity, azimuth, angular separation and invariant mass.
//
// Conventions: the beam runs along z, φ is wrapped to (−π, π], and masses
// of slightly spacelike vectors (numerical noise) are reported as 0.
//
// The package has no state and no dependencies on the rest of the module.
package kinematics
