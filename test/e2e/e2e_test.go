/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package e2e exercises a deployed control plane over its HTTP API. The
// suite needs a running instance plus an API key and is skipped unless
// SKYNET_E2E_ADDRESS is set:
//
//	SKYNET_E2E_ADDRESS=http://localhost:8080 SKYNET_E2E_KEY=<uuid> go test ./test/e2e/...
package e2e

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skynet-mc/skynet/test/e2e/framework"
)

func TestMain(m *testing.M) {
	if os.Getenv("SKYNET_E2E_ADDRESS") == "" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "skynet e2e suite")
}

var f *framework.Framework

var _ = BeforeSuite(func() {
	f = framework.New()
})

var _ = Describe("control plane", func() {
	It("answers the status probe", func() {
		Expect(f.Status()).To(Equal(200))
	})

	It("serves proxy ping data", func() {
		ping, err := f.ProxyPing()
		Expect(err).NotTo(HaveOccurred())
		Expect(ping.Online).To(BeNumerically(">=", 0))
		Expect(ping.Slots).To(BeNumerically(">=", 0))
	})

	It("rejects calls without a credential", func() {
		code, err := f.UnauthenticatedServerList()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(401))
	})

	It("lists the registered fleet", func() {
		servers, err := f.Servers()
		Expect(err).NotTo(HaveOccurred())
		for _, srv := range servers {
			Expect(srv.Label).NotTo(BeEmpty())
			Expect(srv.Kind).NotTo(BeEmpty())
		}
	})

	It("exposes prometheus metrics", func() {
		body, err := f.Metrics()
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(ContainSubstring("skynet_onlines"))
	})
})
