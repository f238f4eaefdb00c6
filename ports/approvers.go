package ports

import "context"

// OriginApprover is an optional hook consulted for origins that the
// allow-list and wildcard matching did not accept.
type OriginApprover interface {
	ApproveOrigin(ctx context.Context, origin string) (bool, error)
}

// OriginApproverFunc adapts a plain function to the OriginApprover interface.
type OriginApproverFunc func(ctx context.Context, origin string) (bool, error)

func (f OriginApproverFunc) ApproveOrigin(ctx context.Context, origin string) (bool, error) {
	return f(ctx, origin)
}

// ImpersonationApprover decides whether a signer may act as another account.
type ImpersonationApprover interface {
	ApproveImpersonation(ctx context.Context, signerAddress string, targetAddress string) (bool, error)
}

// ImpersonationApproverFunc adapts a plain function to the
// ImpersonationApprover interface.
type ImpersonationApproverFunc func(ctx context.Context, signerAddress string, targetAddress string) (bool, error)

func (f ImpersonationApproverFunc) ApproveImpersonation(ctx context.Context, signerAddress string, targetAddress string) (bool, error) {
	return f(ctx, signerAddress, targetAddress)
}
