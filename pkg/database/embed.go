package database

import _ "embed"

// OrderFeedSQL 订单插入通知触发器
//
//go:embed sql/order_feed.sql
var OrderFeedSQL string

// OrderFeedChannel 触发器使用的通知频道
const OrderFeedChannel = "orders_inserted"
