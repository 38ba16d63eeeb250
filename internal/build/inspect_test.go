package build_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telnet2/h5runner/internal/assembler"
	"github.com/telnet2/h5runner/internal/build"
	"github.com/telnet2/h5runner/pkg/types"
)

var _ = Describe("Configure", func() {
	It("finalizes without compiling or serving", func() {
		h := newHarness()
		cfg := &types.BuildConfig{AppPath: "/project", IsWatch: true}

		final, err := h.runner.Configure(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(final.Mode).To(Equal("development"))
		Expect(final.DevServer).To(HaveKeyWithValue("host", "0.0.0.0"))
		Expect(h.compilers).To(BeEmpty())
		Expect(h.servers).To(BeEmpty())
	})

	It("matches what Build hands the compiler", func() {
		h := newHarness()
		cfg := &types.BuildConfig{AppPath: "/project"}

		final, err := h.runner.Configure(cfg)
		Expect(err).NotTo(HaveOccurred())
		_, err = h.runner.Build(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		want, err := build.Marshal(h.compilers[0].config)
		Expect(err).NotTo(HaveOccurred())
		Expect(build.Marshal(final)).To(Equal(want))
	})
})

var _ = Describe("Diff", func() {
	It("reports the lines that differ between profiles", func() {
		cfg := &types.BuildConfig{AppPath: "/project"}
		prod := assembler.Assemble(cfg, assembler.Production).ToConfig()
		dev := assembler.Assemble(cfg, assembler.Development).ToConfig()

		lines, err := build.Diff(prod, dev)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(ContainElement(build.DiffLine{Op: build.DiffDelete, Text: `  "mode": "production",`}))
		Expect(lines).To(ContainElement(build.DiffLine{Op: build.DiffInsert, Text: `  "mode": "development",`}))
	})

	It("reports no changes for identical configurations", func() {
		cfg := &types.BuildConfig{AppPath: "/project"}
		a := assembler.Assemble(cfg, assembler.Production).ToConfig()
		b := assembler.Assemble(cfg, assembler.Production).ToConfig()

		lines, err := build.Diff(a, b)
		Expect(err).NotTo(HaveOccurred())
		for _, l := range lines {
			Expect(l.Op).To(Equal(build.DiffEqual))
		}
	})
})
