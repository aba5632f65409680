// Package fakes provides hand-written test doubles for credbroker's interfaces: the native
// secure storage, the GitHub, Azure and VSTS authorities, the federated token reader and
// the interactive prompts.
//
// Fakes record their calls so tests can assert on network and storage traffic:
//
//	storage := fakes.NewFakeSecureStorage()
//	vsts := &fakes.FakeVstsAuthority{PersonalToken: &pat}
//	b, _ := broker.New(broker.Options{Policy: broker.PolicyAAD, Vsts: vsts, ...})
//	...
//	assert.Equal(t, 1, vsts.GenerateCalls)
package fakes
