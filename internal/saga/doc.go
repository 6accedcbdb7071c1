// Package saga ties blob storage to record mutation for fields that hold
// storage keys.
//
// Every operation runs stage → commit → cleanup inside the caller's request:
//
//   - stage writes new blobs; a failure here surfaces as KindStorage and
//     nothing else happens;
//   - commit swaps the field with a compare-and-swap against the value read
//     just before; on failure the staged blobs are deleted (compensation)
//     and KindConsistency surfaces;
//   - cleanup deletes the superseded blobs in the background after a
//     successful commit. Its failures are logged, never returned.
//
// Compensation and cleanup are best-effort. A failed delete leaves an
// orphan that is logged with orphan=true.
package saga
