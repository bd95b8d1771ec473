// Package runtime manages the lifecycle of engine contexts and documents.
//
// A Runtime owns one engine and one handle registry. Every Context gets its
// own lock; calls on a Context or any Document it owns are serialized on that
// lock, while calls on different Contexts run in parallel.
//
//	rt, err := runtime.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	ctx, _ := rt.OpenContext()
//	doc, err := rt.OpenDocument(ctx, "report.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, _ := rt.PageCount(doc)
//	size, _ := rt.PageSize(doc, 0)
//	fmt.Println(n, size.Width, size.Height)
//
// # Teardown
//
// DestroyContext follows the configured TeardownPolicy. PolicyForceClose
// closes every Document the Context still owns before releasing it.
// PolicyReject refuses with ContextHasOpenDocuments and leaves everything
// untouched.
//
// Every handle resolves again once the Context lock is held, so a call that
// waited behind a teardown fails with UseAfterFree and never reaches the
// engine with a released reference.
package runtime
