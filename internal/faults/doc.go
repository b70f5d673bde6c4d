// Package faults defines the initialization error taxonomy shared by the
// bootstrap components, together with the classifier that turns an error
// into a severity category and a suggested recovery action.
//
// Steps never return bare errors for expected failures. They embed a
// *faults.Error in their result value and the orchestrator decides what to do
// with it after consulting the Classifier.
package faults
