// Package helper connects the PostgreSQL integration tests to the test database.
//
// Tests skip instead of failing when no database answers, so the engine independent
// suites still run on machines without PostgreSQL.
package helper
