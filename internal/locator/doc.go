/*
Package locator provides a structured, type-safe representation for
references into the target store, e.g. `objects["Cube"].modifiers["Subdiv"].levels`.

A locator is a dot-separated sequence of segments. Each segment is an
identifier optionally followed by one subscript, either a quoted member name
or a numeric position. The final segment of an attribute locator names the
attribute; all preceding segments address the handle that owns it.

Parsing is delegated to the HCL traversal grammar so that quoting and
escaping rules match the documents the locators come from.
*/
package locator
