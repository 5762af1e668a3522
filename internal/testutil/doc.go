// Package testutil holds recording fakes shared by package tests.
package testutil
