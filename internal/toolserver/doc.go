// Package toolserver hosts the built-in helpdesk tool catalog over MCP:
// SAP account lookup and password reset, employee directory lookup, invoice
// creation, and ServiceNow incident creation. Backend integrations are
// stubbed; the catalog and transport are real.
package toolserver
