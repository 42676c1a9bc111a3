package ports

// Trading API paths, relative to the configured base URL of the Gateway.
const (
	PathUserSignin       = "user/signin"
	PathUserSignup       = "user/signup"
	PathUserVerifySignup = "user/verifySignup"
	PathAdminSignin      = "admin/signin"
	PathAdminVerify      = "admin/verifySignin"
	PathSubAdminSignin   = "sub-admin/signin"
	PathSubAdminVerify   = "sub-admin/verifySignin"

	PathAllDeals      = "user/allDeals"
	PathPickDeal      = "user/pickDeal"
	PathMyDeals       = "user/myDeals"
	PathGetRequests   = "user/getRequests"
	PathManageDeal    = "user/manageDeal"
	PathSubmitPayment = "user/submitPayment"
	PathRaiseDispute  = "user/raiseDispute"

	PathAdminRequestOrders    = "admin/requestOrders"
	PathAdminManageOrder      = "admin/manageOrder"
	PathSubAdminRequestOrders = "sub-admin/requestOrders"
	PathSubAdminManageOrder   = "sub-admin/manageOrder"

	PathWalletBalance  = "user/walletBalance"
	PathWithdrawOrders = "user/withdrawOrders"
	PathPlaceWithdraw  = "user/placeWithdraw"
	PathWalletHistory  = "user/walletHistory"
	PathIncomeHistory  = "user/incomeHistory"
	PathAdminWallet    = "admin/walletHistory"

	PathRaiseTicket          = "user/raiseTicket"
	PathTicketHistory        = "user/ticketHistory"
	PathAdminTicketList      = "admin/ticketList"
	PathAdminManageTicket    = "admin/manageTicket"
	PathSubAdminTicketList   = "sub-admin/ticketList"
	PathSubAdminManageTicket = "sub-admin/manageTicket"
)
