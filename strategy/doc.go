// Package strategy provides built-in axis selection strategies.
//
// An axis strategy decides the direction along which a process group's points
// are bisected at each recursion level. The package includes three built-in
// strategies:
//
//   - Inertial: Principal axis of the group's inertia tensor (recursive inertial bisection, default)
//   - CoordinateCycle: Coordinate axis cycling with the recursion level (recursive coordinate bisection)
//   - LongestExtent: Coordinate axis with the widest global bounding box
//
// # Strategy Selection Guide
//
// Inertial:
//   - Use when the point cloud is elongated along directions not aligned with the axes
//   - Produces the smallest cut surfaces for anisotropic data
//   - Costs two extra reductions and a small eigen-decomposition per level
//
// CoordinateCycle:
//   - Use for roughly isotropic data or when cut planes must be axis aligned
//   - No reductions are needed to pick the axis
//
// LongestExtent:
//   - Use for axis-aligned cuts on data whose spread differs per axis
//   - One min-reduction per level
//
// Custom strategies can be implemented by satisfying the types.AxisStrategy interface.
package strategy
