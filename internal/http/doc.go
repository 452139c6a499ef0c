// Package http provides HTTP handlers and middleware for the classroom API.
//
// Every /api route requires a bearer token, sent either as
// `Authorization: Bearer <token>` or in the `token` cookie. The router exposes
// the following endpoints:
//   - POST /api/classroom: owners create a classroom. Body: the `classroomRequest`
//     payload. Response 201 with {"classroomId"}.
//   - GET /api/classrooms: owned classrooms for owners, joined classrooms for members.
//   - POST /api/join-classroom: members join by code. Body: {"code"}. Rate limited
//     per client IP.
//   - GET, PUT, DELETE /api/classroom/{classroomID}: read, replace the schedule of,
//     or delete a classroom. PUT takes the `scheduleRequest` payload.
//   - GET /api/classroom/{classroomID}/members: member ids in join order.
//   - DELETE /api/classroom/{classroomID}/member/self: the caller leaves. Token
//     subjects equal to "self" are rejected by the resolvers, so this path never
//     shadows a real member id.
//   - DELETE /api/classroom/{classroomID}/member/{memberID}: the owner removes a member.
//   - GET /healthz: unauthenticated liveness and storage check.
//
// Schedule days are accepted as full English weekday names or their
// three-letter abbreviations, case-insensitively, and are always returned as
// full names ("mon" comes back as "Monday").
//
// Responses use the envelope {"status":"success","message","data"} or
// {"status":"error","error_code","message","errors"}. Request/response DTOs
// live alongside their handlers in classroom_handler.go.
package http
