package models

// EventChangeReturnStatus is the notification event attached to every
// goods-return message, for new positions as well as status changes.
const EventChangeReturnStatus = "changeReturnStatus"

// PermitGoodsReturn is the employee permission that subscribes to
// goods-return notifications.
const PermitGoodsReturn = "tsGoodsReturn"
