// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package netio implements the non-blocking socket I/O pipeline that sits
// on top of core.CPU and reactor.Selector: InputStream (accumulate-until-
// satisfied reads), OutputStream (an ordered transmit queue of
// TransferTasks), and Channel (the pair of the two, bound to one CPU for
// its whole lifetime). No framing is imposed; callers compose it via
// ReadConsume's consumer contract.
package netio
